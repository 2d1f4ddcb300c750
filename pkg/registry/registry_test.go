package registry

import (
	"fmt"
	"testing"
)

type testItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	tests := []struct {
		name    string
		item    testItem
		wantErr bool
	}{
		{
			name:    "register valid item",
			item:    testItem{ID: "item-1", Name: "Item 1"},
			wantErr: false,
		},
		{
			name:    "register item with empty name",
			item:    testItem{ID: "", Name: "Item"},
			wantErr: true,
		},
		{
			name:    "register duplicate item",
			item:    testItem{ID: "item-1", Name: "Item 2"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.item.ID, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_GetHas(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	item := testItem{ID: "item-1", Name: "Item 1"}
	if err := reg.Register(item.ID, item); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name   string
		itemID string
		wantOk bool
	}{
		{name: "get existing item", itemID: "item-1", wantOk: true},
		{name: "get missing item", itemID: "missing", wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.Get(tt.itemID)
			if ok != tt.wantOk {
				t.Errorf("Get() ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && got.ID != tt.itemID {
				t.Errorf("Get() item.ID = %v, want %v", got.ID, tt.itemID)
			}
			if has := reg.Has(tt.itemID); has != tt.wantOk {
				t.Errorf("Has() = %v, want %v", has, tt.wantOk)
			}
		})
	}
}

func TestBaseRegistry_Names(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if err := reg.Register(id, testItem{ID: id}); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	names := reg.Names()
	want := []string{"alpha", "bravo", "charlie"}
	if len(names) != len(want) {
		t.Fatalf("Names() length = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	if err := reg.Register("item-1", testItem{ID: "item-1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		itemID  string
		wantErr bool
	}{
		{name: "remove existing item", itemID: "item-1", wantErr: false},
		{name: "remove missing item", itemID: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Remove(tt.itemID)
			if (err != nil) != tt.wantErr {
				t.Errorf("Remove() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && reg.Has(tt.itemID) {
				t.Errorf("item %s still present after Remove()", tt.itemID)
			}
		})
	}
}

func TestBaseRegistry_CountClear(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	if count := reg.Count(); count != 0 {
		t.Errorf("Count() = %v, want 0", count)
	}

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("item-%d", i)
		if err := reg.Register(id, testItem{ID: id}); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	if count := reg.Count(); count != 3 {
		t.Errorf("Count() = %v, want 3", count)
	}

	reg.Clear()

	if count := reg.Count(); count != 0 {
		t.Errorf("Count() after Clear() = %v, want 0", count)
	}
	if items := reg.List(); len(items) != 0 {
		t.Errorf("List() after Clear() length = %v, want 0", len(items))
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	done := make(chan bool, 2)

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("concurrent-%d", i)
			_ = reg.Register(id, testItem{ID: id})
		}
	}()

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			reg.Get(fmt.Sprintf("concurrent-%d", i))
			reg.Count()
			reg.List()
		}
	}()

	<-done
	<-done

	if count := reg.Count(); count != 100 {
		t.Errorf("Count() after concurrent access = %v, want 100", count)
	}
}
