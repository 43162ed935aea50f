package backend

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestTextFilter_DropsEmptyAndRepeats(t *testing.T) {
	var got []string
	collect := func(s string) { got = append(got, s) }

	var f textFilter
	for _, s := range []string{"", "hi", "hi", "  hi  ", "hi there", "", "hi there", "hi"} {
		f.emit(s, collect)
	}

	want := []string{"hi", "hi there", "hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("emitted %v, want %v", got, want)
	}
}

func TestTextFilter_TrimsBeforeEmit(t *testing.T) {
	var got []string
	var f textFilter
	f.emit("  hello world \n", func(s string) { got = append(got, s) })

	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("emitted %v, want [hello world]", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&ConnectError{Err: errors.New("refused")}, "connect"},
		{&ProtocolError{Err: errors.New("timeout")}, "protocol"},
		{&BusyError{Message: "full"}, "busy"},
		{&BackendError{Message: "oom"}, "backend"},
		{ErrConnectionClosed, "closed"},
		{fmt.Errorf("%w: reset by peer", ErrConnectionClosed), "closed"},
		{errors.New("anything"), "other"},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(&BusyError{Message: "full"}) {
		t.Error("busy must be terminal")
	}
	if !IsTerminal(&ConnectError{Err: errors.New("refused")}) {
		t.Error("connect failure must be terminal")
	}
	if IsTerminal(ErrConnectionClosed) {
		t.Error("a closed connection mid-stream must not be terminal")
	}
	if IsTerminal(nil) {
		t.Error("nil must not be terminal")
	}
}
