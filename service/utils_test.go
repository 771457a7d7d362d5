package service

import (
	"context"
	"fmt"
	"net/url"
	"testing"
)

func TestPermanent(t *testing.T) {
	err := fmt.Errorf("Permanent error")
	if Temporary(err) {
		t.Fail()
	}
	err = &url.Error{Err: err}
	if Temporary(err) {
		t.Fail()
	}
}

func TestTemporary(t *testing.T) {
	err := MakeTemporary(fmt.Errorf("Temporary error"))
	if !Temporary(err) {
		t.Fail()
	}
	err = fmt.Errorf("Warp: %w", err)
	if !Temporary(err) {
		t.Fail()
	}
	if !Temporary(context.Canceled) {
		t.Fail()
	}
	if !Temporary(context.DeadlineExceeded) {
		t.Fail()
	}
	err = fmt.Errorf("Warp: %w", &url.Error{Err: err})
	if !Temporary(err) {
		t.Fail()
	}
}

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Push("tileB__20210101")
	ss.Push("tileA__20210101T053000")
	ss.Push("tileB__20210101")
	if len(ss) != 2 {
		t.Errorf("expected 2 elements, got %d", len(ss))
	}
	if sorted := ss.Sorted(); sorted[0] != "tileA__20210101T053000" || sorted[1] != "tileB__20210101" {
		t.Errorf("unexpected order: %v", sorted)
	}
	ss.Pop("tileB__20210101")
	if ss.Exists("tileB__20210101") {
		t.Error("tileB__20210101 should have been removed")
	}
}
