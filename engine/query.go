package engine

import "context"

// Query is a goal being solved. Solutions are produced one at a time by
// Next; the bindings of the current solution stay in place until the next
// call or Close.
type Query struct {
	s    *solver
	vars []VarName
	done bool
}

// Query parses text as a goal in the user module and prepares it for
// solving. A final end token is optional. A syntax error is returned as an
// *Exception.
func (e *Engine) Query(ctx context.Context, text string) (*Query, error) {
	goal, vars, err := e.parseTerm(text)
	if err != nil {
		return nil, err
	}
	goal, mod, err := e.qualified(goal, e.user)
	if err != nil {
		return nil, err
	}
	return &Query{s: newSolver(ctx, e, wrapVarGoals(goal), mod), vars: vars}, nil
}

// Vars returns the named variables of the query in order of first
// appearance.
func (q *Query) Vars() []VarName {
	return q.vars
}

// Next advances to the next solution. It returns false once no solutions
// remain. An uncaught Prolog exception is returned as *Exception; engine
// faults, including recovered panics, as *Fault. After an error or
// exhaustion the query is finished and Next keeps returning false.
func (q *Query) Next() (found bool, err error) {
	if q.done {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			found, err = false, recoverFault(r)
		}
		if !found {
			q.finish()
		}
	}()
	return q.s.next()
}

func (q *Query) finish() {
	q.done = true
	if q.s != nil {
		q.s.release()
	}
}

// Close abandons the query, undoing its bindings and dropping all
// choicepoints.
func (q *Query) Close() {
	if !q.done {
		q.finish()
	}
}
