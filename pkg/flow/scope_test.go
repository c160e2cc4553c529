package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/G1D0/flowgate/pkg/compose"
)

func TestScopePrefixAndSuffix(t *testing.T) {
	rec := &recorder{}
	f, err := New(doubler(rec))
	require.NoError(t, err)
	require.NoError(t, f.Register(rec.mw("g1")))
	require.NoError(t, f.Register(rec.mw("g2")))

	s := f.CreateScope()
	require.NoError(t, s.Register(Suffix, rec.mw("s1")))
	require.NoError(t, s.Register(Prefix, rec.mw("p1")))
	require.NoError(t, s.Register(Prefix, rec.mw("p2")))
	require.NoError(t, s.Register(Suffix, rec.mw("s2")))
	require.Equal(t, 6, s.Len())

	got, err := s.Call(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 4, got)
	require.Equal(t, []string{"p2", "p1", "g1", "g2", "s1", "s2", "action"}, rec.list())
}

func TestScopeSnapshotIgnoresLaterGlobalRegistration(t *testing.T) {
	rec := &recorder{}
	f, err := New(doubler(rec))
	require.NoError(t, err)
	require.NoError(t, f.Register(rec.mw("m1")))

	before := f.CreateScope()
	require.NoError(t, f.Register(rec.mw("m2")))
	after := f.CreateScope()

	_, err = before.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "action"}, rec.list())

	rec.calls = nil
	_, err = after.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2", "action"}, rec.list())
}

func TestScopeDoesNotAffectControllerOrSiblings(t *testing.T) {
	rec := &recorder{}
	f, err := New(doubler(rec))
	require.NoError(t, err)
	require.NoError(t, f.Register(rec.mw("g")))

	a := f.CreateScope()
	b := f.CreateScope()
	require.NoError(t, a.Register(Prefix, rec.mw("a-pre")))
	require.NoError(t, a.Register(Suffix, rec.mw("a-suf")))

	_, err = b.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"g", "action"}, rec.list())

	rec.calls = nil
	_, err = f.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"g", "action"}, rec.list())
	require.Equal(t, 1, f.Len())
	require.Equal(t, 1, b.Len())
	require.Equal(t, 3, a.Len())
}

func TestScopeRegisterValidation(t *testing.T) {
	f, err := New(doubler(nil))
	require.NoError(t, err)
	s := f.CreateScope()

	require.ErrorIs(t, s.Register(Prefix, nil), compose.ErrNotInvocable)
	require.ErrorIs(t, s.Register(Position(7), func(c *Context[int, int], next compose.Next) error {
		return next()
	}), ErrUnknownPosition)
	require.Zero(t, s.Len())
}

func TestScopeUpdaterAndGo(t *testing.T) {
	f, err := New(doubler(nil))
	require.NoError(t, err)
	s := f.CreateScope()
	require.NoError(t, s.Register(Suffix, func(c *Context[int, int], next compose.Next) error {
		if err := next(); err != nil {
			return err
		}
		c.SetRes(func(v int) int { return v + 1 })
		return nil
	}))

	got, err := s.Go(context.Background(), 10).Wait()
	require.NoError(t, err)
	require.Equal(t, 21, got)
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition(" Prefix ")
	require.NoError(t, err)
	require.Equal(t, Prefix, p)

	p, err = ParsePosition("suffix")
	require.NoError(t, err)
	require.Equal(t, Suffix, p)

	_, err = ParsePosition("middle")
	require.ErrorIs(t, err, ErrUnknownPosition)

	var q Position
	require.NoError(t, q.UnmarshalText([]byte("suffix")))
	require.Equal(t, Suffix, q)
	text, err := q.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "suffix", string(text))
	require.Equal(t, "unknown", Position(9).String())
}
