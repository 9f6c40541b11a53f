package runner

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// countingFs tracks open handles so tests can check every loop file is
// closed again.
type countingFs struct {
	afero.Fs
	open atomic.Int32
}

type countedFile struct {
	afero.File
	fs *countingFs
}

func (f *countedFile) Close() error {
	f.fs.open.Add(-1)
	return f.File.Close()
}

func (c *countingFs) Open(name string) (afero.File, error) {
	f, err := c.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	c.open.Add(1)
	return &countedFile{File: f, fs: c}, nil
}

func fileLoopHarness(t *testing.T) (*harness, *countingFs) {
	t.Helper()
	h := newHarness(t, nil)
	fs := &countingFs{Fs: h.fs}
	h.r.fs = fs
	require.NoError(t, afero.WriteFile(fs, "/data/users.txt", []byte("alice\nbob\r\n\ncarol"), 0o644))
	return h, fs
}

func fileLoop(body ...zest.Statement) (*zest.Script, error) {
	loop := &zest.LoopFile{
		LoopBase:   zest.LoopBase{VariableName: "line"},
		PathToFile: "/data/{{file}}",
	}
	s := script(loop)
	for _, stmt := range body {
		if err := s.AddChild(loop, stmt); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func TestFileLoopReadsEveryLine(t *testing.T) {
	h, fs := fileLoopHarness(t)
	s, err := fileLoop(say("[{{line}}]"))
	require.NoError(t, err)

	_, err = h.run(t, s, map[string]string{"file": "users.txt"})
	require.NoError(t, err)
	assert.Equal(t, "[alice]\n[bob]\n[]\n[carol]\n", h.out.String())
	assert.Zero(t, fs.open.Load())
	assert.Empty(t, h.r.files)
}

func TestFileLoopClosesOnBreakAndFailure(t *testing.T) {
	for name, body := range map[string][]zest.Statement{
		"break":  {say("{{line}}"), &zest.LoopBreak{}},
		"return": {&zest.ControlReturn{Value: "{{line}}"}},
		"fail":   {&zest.ActionFail{Message: "stop at {{line}}"}},
	} {
		t.Run(name, func(t *testing.T) {
			h, fs := fileLoopHarness(t)
			s, err := fileLoop(body...)
			require.NoError(t, err)

			res, err := h.run(t, s, map[string]string{"file": "users.txt"})
			switch name {
			case "fail":
				require.Error(t, err)
				var fe *FailError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "stop at alice", fe.Message)
			case "return":
				require.NoError(t, err)
				assert.Equal(t, "alice", res.ReturnValue)
			default:
				require.NoError(t, err)
				assert.Equal(t, "alice\n", h.out.String())
			}
			assert.Zero(t, fs.open.Load())
			assert.Empty(t, h.r.files)
		})
	}
}

func TestFileLoopMissingFile(t *testing.T) {
	h, fs := fileLoopHarness(t)
	s, err := fileLoop(say("{{line}}"))
	require.NoError(t, err)

	_, err = h.run(t, s, map[string]string{"file": "nope.txt"})
	require.Error(t, err)
	assert.Equal(t, errdef.CodeIO, errdef.CodeOf(err))
	assert.Zero(t, fs.open.Load())
}

func TestIntegerLoopStep(t *testing.T) {
	h := newHarness(t, nil)
	loop := zest.NewLoopInteger("i", 1, 8)
	loop.Step = 3
	s := script(loop)
	require.NoError(t, s.AddChild(loop, say("{{i}}")))

	_, err := h.run(t, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "1\n4\n7\n", h.out.String())

	loop.Step = 0
	_, err = h.run(t, s, nil)
	assert.Equal(t, errdef.CodeScript, errdef.CodeOf(err))
}

func TestIntegerLoopStopsAtIntBounds(t *testing.T) {
	for _, tc := range []struct {
		name             string
		start, end, step int
		want             []string
	}{
		{"step past max", math.MaxInt - 1, math.MaxInt, 2, []string{strconv.Itoa(math.MaxInt - 1)}},
		{"last value below max", math.MaxInt - 4, math.MaxInt, 3, []string{strconv.Itoa(math.MaxInt - 4), strconv.Itoa(math.MaxInt - 1)}},
		{"full range", math.MinInt, math.MaxInt, math.MaxInt, []string{strconv.Itoa(math.MinInt), "-1", strconv.Itoa(math.MaxInt - 1)}},
		{"empty", 5, 5, 1, []string{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			loop := zest.NewLoopInteger("i", tc.start, tc.end)
			loop.Step = tc.step
			s := script(loop)
			require.NoError(t, s.AddChild(loop, say("{{i}}")))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			res, err := h.r.Run(ctx, s, nil)
			require.NoError(t, err)
			assert.Equal(t, OutcomeSuccess, res.Outcome)
			assert.Equal(t, tc.want, strings.Fields(h.out.String()))
		})
	}
}
