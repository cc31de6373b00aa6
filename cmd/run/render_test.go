package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/prolog-runtime/machine"
)

func familyMachine(t *testing.T, out *outputBuffer) *machine.Machine {
	t.Helper()
	src, err := os.ReadFile("testdata/family.pl")
	require.NoError(t, err)
	opts := []machine.Option{}
	if out != nil {
		opts = append(opts, machine.WithOutput(out))
	}
	m, err := machine.NewBuilder(opts...).Build()
	require.NoError(t, err)
	require.NoError(t, m.Consult("user", string(src)))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAnswersGolden(t *testing.T) {
	m := familyMachine(t, nil)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name  string
		query string
		limit int
	}{
		{"grandchildren", "grandparent(tom, X).", 0},
		{"no_solutions", "parent(nobody, _).", 0},
		{"ground_fact", "parent(tom, bob).", 0},
		{"values", `X is 1 rdiv 3, Y = f("s", 'A b', [1, 2]), Z = 2.5.`, 0},
		{"exception", "throw(my_error(1)).", 0},
		{"limited", "parent(tom, C).", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := renderAnswers(context.Background(), m, tt.query, tt.limit)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(out))
			assert.False(t, m.Busy())
		})
	}
}

func TestAnswerLines(t *testing.T) {
	m := familyMachine(t, nil)
	in := strings.NewReader("% comment\n\nparent(tom, X).\n\ngrandparent(liz, _).\n")
	var out bytes.Buffer

	require.NoError(t, answerLines(context.Background(), in, &out, m))
	assert.Equal(t, "X = bob.\nX = liz.\nfalse.\n", out.String())
}

func TestWriteAnswersCancelled(t *testing.T) {
	m := familyMachine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := renderAnswers(ctx, m, "repeat, fail.", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "error: error(system_error(cancelled)"), out)
}

func TestInteractiveModel(t *testing.T) {
	out := &outputBuffer{}
	m := familyMachine(t, out)
	model := newInteractiveModel(m, out, 0)
	assert.Equal(t, replAnswers, model.limit)

	_, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	require.True(t, model.ready)

	model.input.SetValue("greet(world).")
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, model.running)
	assert.Equal(t, []string{"greet(world)."}, model.history)

	// Enter is ignored while a query runs.
	_, again := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, again)

	msg := cmd()
	answers, ok := msg.(answersMsg)
	require.True(t, ok)
	require.NoError(t, answers.err)
	assert.Equal(t, "true.\n", answers.answers)
	assert.Equal(t, "hello(world)\n", answers.output)

	_, _ = model.Update(answers)
	assert.False(t, model.running)
	assert.False(t, m.Busy())
	assert.Contains(t, model.View(), "hello(world)")

	_, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "greet(world).", model.input.Value())
	_, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Empty(t, model.input.Value())
}

func TestOutputBufferDrain(t *testing.T) {
	var b outputBuffer
	_, _ = b.Write([]byte("a"))
	_, _ = b.Write([]byte("b"))
	assert.Equal(t, "ab", b.Drain())
	assert.Empty(t, b.Drain())
}
