package recstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/birdie-ai/ormkit/domain"
	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/recstore"
	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/google/go-cmp/cmp"
)

// seed creates:
//
//	1 Acme  customer  100  US  [vip]
//	2 Bolt            50   BR  [vip new]  parent 1
//	3 Crux  customer           []         parent 2
//	4 Dyna  inactive  200  US  []
func seed(t *testing.T) *recstore.Store {
	t.Helper()
	s := newStore(t)
	us := create(t, s, "country", obj.O{"name": "United States", "code": "US"})
	br := create(t, s, "country", obj.O{"name": "Brazil", "code": "BR"})
	vip := create(t, s, "tag", obj.O{"name": "vip"})
	newTag := create(t, s, "tag", obj.O{"name": "new"})

	acme := create(t, s, "partner", obj.O{
		"name": "Acme", "active": true, "customer": true, "list_price": 100, "country_id": us,
		"tag_ids": relcmd.Commands{relcmd.Link(vip)}, "date_order": "2024-03-01",
	})
	bolt := create(t, s, "partner", obj.O{
		"name": "Bolt", "active": true, "list_price": 50, "country_id": br, "parent_id": acme,
		"tag_ids": relcmd.Commands{relcmd.Link(vip), relcmd.Link(newTag)}, "date_order": "2024-06-01",
	})
	create(t, s, "partner", obj.O{"name": "Crux", "active": true, "customer": true, "parent_id": bolt})
	create(t, s, "partner", obj.O{"name": "Dyna", "list_price": 200, "country_id": us})
	return s
}

func TestSearch(t *testing.T) {
	t.Parallel()

	s := seed(t)
	tests := []struct {
		name   string
		domain domain.Domain
		opts   recstore.SearchOptions
		want   []ID
	}{
		{name: "empty", want: []ID{1, 2, 3, 4}},
		{name: "boolean", domain: domain.Domain{domain.C("customer", domain.Eq, true)}, want: []ID{1, 3}},
		{name: "inactive", domain: domain.Domain{domain.C("active", domain.Eq, false)}, want: []ID{4}},
		{name: "greater", domain: domain.Domain{domain.C("list_price", domain.Gt, 60)}, want: []ID{1, 4}},
		{name: "null", domain: domain.Domain{domain.C("list_price", domain.Eq, nil)}, want: []ID{3}},
		{name: "not null many2one", domain: domain.Domain{domain.C("country_id", domain.Neq, false)}, want: []ID{1, 2, 4}},
		{name: "many2one id", domain: domain.Domain{domain.C("country_id", domain.In, []any{2})}, want: []ID{2}},
		{name: "many2one path", domain: domain.Domain{domain.C("country_id.code", domain.Eq, "US")}, want: []ID{1, 4}},
		{name: "many2many path", domain: domain.Domain{domain.C("tag_ids.name", domain.Eq, "new")}, want: []ID{2}},
		{name: "many2many ids", domain: domain.Domain{domain.C("tag_ids", domain.In, []any{1})}, want: []ID{1, 2}},
		{name: "empty many2many", domain: domain.Domain{domain.C("tag_ids", domain.Eq, false)}, want: []ID{3, 4}},
		{name: "one2many path", domain: domain.Domain{domain.C("child_ids.name", domain.Eq, "Crux")}, want: []ID{2}},
		{name: "one2many null path", domain: domain.Domain{domain.C("child_ids.list_price", domain.Eq, false)}, want: []ID{2}},
		{name: "one2many all null", domain: domain.Domain{domain.C("child_ids.email", domain.Eq, false)}, want: []ID{1, 2}},
		{name: "one2many boolean false", domain: domain.Domain{domain.C("child_ids.customer", domain.Eq, false)}, want: []ID{1}},
		{name: "one2many not null", domain: domain.Domain{domain.C("child_ids.list_price", domain.Neq, false)}, want: []ID{1, 3, 4}},
		{name: "one2many null many2one", domain: domain.Domain{domain.C("child_ids.country_id", domain.In, []any{false})}, want: []ID{2}},
		{name: "one2many null path through", domain: domain.Domain{domain.C("child_ids.country_id.code", domain.Eq, false)}, want: []ID{2}},
		{name: "empty one2many tags", domain: domain.Domain{domain.C("child_ids.tag_ids", domain.Eq, false)}, want: []ID{2}},
		{name: "two relations", domain: domain.Domain{domain.C("parent_id.country_id.code", domain.Eq, "US")}, want: []ID{2}},
		{name: "ilike", domain: domain.Domain{domain.C("name", domain.ILike, "CR")}, want: []ID{3}},
		{name: "date", domain: domain.Domain{domain.C("date_order", domain.Gte, "2024-04-01")}, want: []ID{2}},
		{name: "child of", domain: domain.Domain{domain.C("id", domain.ChildOf, 1)}, want: []ID{1, 2, 3}},
		{name: "child of many2one", domain: domain.Domain{domain.C("parent_id", domain.ChildOf, 1)}, want: []ID{2, 3}},
		{name: "parent of", domain: domain.Domain{domain.C("id", domain.ParentOf, 3)}, want: []ID{1, 2, 3}},
		{
			name:   "or",
			domain: domain.Domain{domain.Or, domain.C("customer", domain.Eq, true), domain.C("list_price", domain.Gt, 150)},
			want:   []ID{1, 3, 4},
		},
		{
			name:   "implicit and",
			domain: domain.Domain{domain.C("customer", domain.Eq, true), domain.Not, domain.C("name", domain.Like, "Cr%")},
			want:   []ID{1},
		},
		{name: "order asc nulls last", opts: recstore.SearchOptions{Order: "list_price"}, want: []ID{2, 1, 4, 3}},
		{name: "order desc", opts: recstore.SearchOptions{Order: "list_price DESC"}, want: []ID{3, 4, 1, 2}},
		{name: "order many2one then name", opts: recstore.SearchOptions{Order: "country_id asc, name desc"}, want: []ID{4, 1, 2, 3}},
		{name: "order id desc", opts: recstore.SearchOptions{Order: "id DESC"}, want: []ID{4, 3, 2, 1}},
		{name: "offset and limit", opts: recstore.SearchOptions{Offset: 1, Limit: 2}, want: []ID{2, 3}},
		{name: "offset past end", opts: recstore.SearchOptions{Offset: 10}, want: []ID{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.Search(context.Background(), "partner", test.domain, test.opts)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	s := seed(t)
	tests := []struct {
		name   string
		model  string
		domain domain.Domain
		opts   recstore.SearchOptions
		want   error
	}{
		{name: "unknown model", model: "nope", want: recstore.ErrUnknownModel},
		{name: "unknown field", model: "partner", domain: domain.Domain{domain.C("colour", domain.Eq, "red")}, want: domain.ErrUnknownField},
		{name: "field of scalar", model: "partner", domain: domain.Domain{domain.C("name.size", domain.Eq, 1)}, want: domain.ErrUnknownField},
		{name: "id is not a relation", model: "partner", domain: domain.Domain{domain.C("id.name", domain.Eq, 1)}, want: domain.ErrUnknownField},
		{name: "type mismatch", model: "partner", domain: domain.Domain{domain.C("list_price", domain.Gt, "cheap")}, want: domain.ErrTypeMismatch},
		{name: "invalid domain", model: "partner", domain: domain.Domain{domain.And, domain.C("customer", domain.Eq, true)}, want: domain.ErrInvalidDomain},
		{name: "hierarchy without parent", model: "tag", domain: domain.Domain{domain.C("id", domain.ChildOf, 1)}, want: domain.ErrInvalidDomain},
		{name: "order unknown field", model: "partner", opts: recstore.SearchOptions{Order: "colour"}, want: recstore.ErrInvalidOrder},
		{name: "order x2many", model: "partner", opts: recstore.SearchOptions{Order: "tag_ids"}, want: recstore.ErrInvalidOrder},
		{name: "order direction", model: "partner", opts: recstore.SearchOptions{Order: "name sideways"}, want: recstore.ErrInvalidOrder},
		{name: "order empty term", model: "partner", opts: recstore.SearchOptions{Order: "name,,id"}, want: recstore.ErrInvalidOrder},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := s.Search(context.Background(), test.model, test.domain, test.opts)
			if !errors.Is(err, test.want) {
				t.Fatalf("got %v; want %v", err, test.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	s := seed(t)
	n, err := s.Count(context.Background(), "partner", domain.Domain{domain.C("customer", domain.Eq, true)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d; want 2", n)
	}
}

func TestSearchRead(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	got, err := s.SearchRead(ctx, "partner", domain.Domain{domain.C("customer", domain.Eq, true)},
		recstore.SearchOptions{Order: "name"}, "name", "country_id", "child_ids")
	if err != nil {
		t.Fatal(err)
	}
	want := []obj.O{
		{"id": ID(1), "name": "Acme", "country_id": ID(1), "child_ids": []ID{2}},
		{"id": ID(3), "name": "Crux", "country_id": nil, "child_ids": []ID{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	all, err := s.SearchRead(ctx, "tag", nil, recstore.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	wantAll := []obj.O{{"id": ID(1), "name": "vip"}, {"id": ID(2), "name": "new"}}
	if diff := cmp.Diff(wantAll, all); diff != "" {
		t.Fatalf("all fields mismatch (-want +got):\n%s", diff)
	}

	_, err = s.SearchRead(ctx, "partner", nil, recstore.SearchOptions{}, "colour")
	if !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("got %v; want %v", err, domain.ErrUnknownField)
	}
}

func TestNameSearch(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	tests := []struct {
		name  string
		model string
		query string
		extra domain.Domain
		op    domain.Operator
		limit int
		want  []recstore.NamePair
	}{
		{
			name:  "ilike by default",
			model: "partner",
			query: "U",
			want:  []recstore.NamePair{{ID: 3, Name: "Crux"}},
		},
		{
			name:  "empty name matches all",
			model: "partner",
			limit: 2,
			want:  []recstore.NamePair{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Bolt"}},
		},
		{
			name:  "extra domain",
			model: "partner",
			query: "a",
			extra: domain.Domain{domain.C("customer", domain.Eq, true)},
			want:  []recstore.NamePair{{ID: 1, Name: "Acme"}},
		},
		{
			name:  "operator",
			model: "partner",
			query: "Bolt",
			op:    domain.Eq,
			want:  []recstore.NamePair{{ID: 2, Name: "Bolt"}},
		},
		{
			name:  "no match",
			model: "country",
			query: "Narnia",
			want:  []recstore.NamePair{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.NameSearch(ctx, test.model, test.query, test.extra, test.op, test.limit)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNameSearchCustomNameField(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	id := create(t, s, "order", obj.O{"ref": "SO042"})
	create(t, s, "order", obj.O{"ref": "SO043"})
	got, err := s.NameSearch(context.Background(), "order", "042", nil, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]recstore.NamePair{{ID: id, Name: "SO042"}}, got); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver(t *testing.T) {
	t.Parallel()

	s := seed(t)
	r, err := s.Resolver("partner")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		rec  domain.Record
		path string
		want any
	}{
		{rec: ID(2), path: "name", want: "Bolt"},
		{rec: 2, path: "id", want: ID(2)},
		{rec: obj.O{"id": ID(2)}, path: "parent_id", want: ID(1)},
		{rec: ID(2), path: "parent_id.name", want: "Acme"},
		{rec: ID(1), path: "parent_id.name", want: nil},
		{rec: ID(2), path: "tag_ids", want: []any{ID(1), ID(2)}},
		{rec: ID(2), path: "tag_ids.name", want: domain.Values{"vip", "new"}},
		{rec: ID(3), path: "tag_ids.name", want: domain.Values{}},
		{rec: ID(1), path: "child_ids.child_ids.name", want: domain.Values{"Crux"}},
		{rec: ID(1), path: "child_ids.list_price", want: domain.Values{50.0}},
		{rec: ID(2), path: "child_ids.list_price", want: domain.Values{nil}},
		{rec: ID(1), path: "child_ids.country_id.code", want: domain.Values{"BR"}},
		{rec: ID(2), path: "child_ids.country_id.code", want: domain.Values{nil}},
		{rec: ID(1), path: "child_ids.tag_ids", want: domain.Values{[]any{ID(1), ID(2)}}},
		{rec: ID(4), path: "child_ids.id", want: domain.Values{}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v/%s", test.rec, test.path), func(t *testing.T) {
			t.Parallel()
			got, err := r.ResolveField(test.rec, test.path)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := r.ResolveField(ID(42), "name"); !errors.Is(err, recstore.ErrRecordNotFound) {
		t.Fatalf("got %v; want %v", err, recstore.ErrRecordNotFound)
	}
	if _, err := r.ResolveField("Acme", "name"); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("got %v; want %v", err, domain.ErrTypeMismatch)
	}
}

func TestResolverSnapshot(t *testing.T) {
	t.Parallel()

	s := seed(t)
	r, err := s.Resolver("partner")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(context.Background(), "partner", []ID{1}, obj.O{"name": "Changed"}); err != nil {
		t.Fatal(err)
	}
	got, err := r.ResolveField(ID(1), "name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Acme" {
		t.Fatalf("got %v; want the name before the write", got)
	}
}

func TestHierarchyCycle(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	// 1 -> 3 -> 2 -> 1
	if err := s.Write(ctx, "partner", []ID{1}, obj.O{"parent_id": 3}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Search(ctx, "partner", domain.Domain{domain.C("id", domain.ChildOf, 4)}, recstore.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]ID{4}, got); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentSearchAndWrite(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Create(ctx, "tag", obj.O{"name": fmt.Sprintf("tag%d", i)}); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Search(ctx, "partner", domain.Domain{domain.C("tag_ids.name", domain.Eq, "vip")}, recstore.SearchOptions{}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx, "tag", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 12 {
		t.Fatalf("got %d tags; want 12", n)
	}
}
