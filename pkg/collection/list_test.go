package collection

import (
	"reflect"
	"testing"
)

type app struct {
	ID   int64
	Name string
}

func appKey(a app) int64 { return a.ID }

func TestPushAllThenRemove(t *testing.T) {
	l := New(appKey)
	a := app{ID: 1, Name: "a"}
	b := app{ID: 2, Name: "b"}

	l.PushAll(a, b)
	l.Remove(a)

	if got := l.Items(); !reflect.DeepEqual(got, []app{b}) {
		t.Errorf("Items() = %v, want [b]", got)
	}
}

func TestRemoveMatchesByKeyNotValue(t *testing.T) {
	l := New(appKey)
	l.Push(app{ID: 1, Name: "original"})
	l.Push(app{ID: 2, Name: "other"})

	l.Remove(app{ID: 1, Name: "renamed"})

	if got := l.Items(); !reflect.DeepEqual(got, []app{{ID: 2, Name: "other"}}) {
		t.Errorf("Items() = %v", got)
	}
}

func TestRemoveNonMatchingIsNoop(t *testing.T) {
	l := New(appKey)
	l.PushAll(app{ID: 1}, app{ID: 2})

	l.Remove(app{ID: 3})

	if got := l.Items(); !reflect.DeepEqual(got, []app{{ID: 1}, {ID: 2}}) {
		t.Errorf("Items() = %v", got)
	}
}

func TestReset(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*List[app, int64])
	}{
		{"empty", func(*List[app, int64]) {}},
		{"populated", func(l *List[app, int64]) { l.PushAll(app{ID: 1}, app{ID: 2}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(appKey)
			tt.setup(l)
			l.Reset()
			if got := l.Items(); got == nil || len(got) != 0 {
				t.Errorf("Items() = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestComparableRemovesAllEqualEntries(t *testing.T) {
	errs := NewComparable[string]()
	errs.Push("bad")
	errs.Push("bad")
	if errs.Len() != 2 {
		t.Fatalf("duplicates should coexist, Len() = %d", errs.Len())
	}

	errs.Remove("bad")

	if errs.Len() != 0 {
		t.Errorf("Items() = %v, want empty", errs.Items())
	}
}

func TestPushPreservesOrder(t *testing.T) {
	l := NewComparable[string]()
	l.Push("a")
	l.PushAll("b", "c")
	l.Push("d")

	if got := l.Items(); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("Items() = %v", got)
	}
}

func TestEveryMutationNotifiesWithFullCollection(t *testing.T) {
	l := NewComparable[string]()
	var snapshots [][]string
	l.Subscribe(func(items []string) { snapshots = append(snapshots, items) })

	l.Push("a")
	l.PushAll("b", "c")
	l.RemoveKey("b")
	l.Reset()

	want := [][]string{
		{},
		{"a"},
		{"a", "b", "c"},
		{"a", "c"},
		{},
	}
	if !reflect.DeepEqual(snapshots, want) {
		t.Errorf("snapshots = %v, want %v", snapshots, want)
	}
}

func TestSnapshotsAreNotMutated(t *testing.T) {
	l := NewComparable[string]()
	l.PushAll("a", "b")
	before := l.Items()

	l.Push("c")
	l.RemoveKey("a")

	if !reflect.DeepEqual(before, []string{"a", "b"}) {
		t.Errorf("earlier snapshot changed to %v", before)
	}
}

func TestReplaceIsOneWrite(t *testing.T) {
	l := New(appKey)
	l.PushAll(app{ID: 1}, app{ID: 2})

	var seen [][]app
	l.Subscribe(func(items []app) { seen = append(seen, items) })

	in := []app{{ID: 3}, {ID: 4}}
	l.Replace(in...)
	in[0].Name = "mutated"

	want := [][]app{{{ID: 1}, {ID: 2}}, {{ID: 3}, {ID: 4}}}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("deliveries = %v, want %v", seen, want)
	}

	l.Replace()
	if got := l.Items(); got == nil || len(got) != 0 {
		t.Errorf("Items() = %#v, want empty non-nil slice", got)
	}
}

func TestPanickingKeyLeavesListUsable(t *testing.T) {
	l := NewComparable[any]()
	l.Push([]int{1})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected comparing slices to panic")
			}
		}()
		l.Remove([]int{1})
	}()

	l.Push("x")
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}
