package aifs

import (
	"context"
	"testing"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"a/b/c": "c",
		"solo":  "solo",
		"a/":    "a",
		"":      "",
	}
	for in, want := range cases {
		if got := lastSegment(in); got != want {
			t.Errorf("lastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMkdir_IsNoOp(t *testing.T) {
	b := &Backend{}
	u := types.URI{Scheme: types.SchemeAIFS, Path: "any/key"}
	if err := b.Mkdir(context.Background(), u); err != nil {
		t.Fatalf("Mkdir should always succeed as a no-op, got %v", err)
	}
}

func TestCopy_ReturnsNotImplemented(t *testing.T) {
	b := &Backend{}
	src := types.URI{Scheme: types.SchemeAIFS, Path: "a"}
	dst := types.URI{Scheme: types.SchemeAIFS, Path: "b"}
	_, err := b.Copy(context.Background(), src, dst, nil)
	if errs.KindOf(err) != errs.KindNotImplemented {
		t.Fatalf("expected notImplemented, got %v", err)
	}
}

func TestJSONCodec_RoundTrips(t *testing.T) {
	c := jsonCodec{}
	if c.Name() != "json" {
		t.Fatalf("codec name = %q, want json", c.Name())
	}
	type payload struct{ Key string }
	data, err := c.Marshal(payload{Key: "x"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out payload
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Key != "x" {
		t.Errorf("round trip got %q, want x", out.Key)
	}
}

var _ store.Backend = (*Backend)(nil)
