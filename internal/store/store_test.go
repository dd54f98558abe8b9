package store_test

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/memory"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	mock_store "github.com/ariefcatur/go-catalog-orders/internal/store/mock"
	"github.com/ariefcatur/go-catalog-orders/internal/tasks"
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"time"
)

type gadget struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	Stock     int       `json:"stock"`
	Active    bool      `json:"active"`
	Owner     string    `json:"owner,omitempty"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var gadgetFillable = []string{"name", "code", "stock", "active", "owner", "image"}

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		driver *memory.Driver
		cache  *memory.Cache
		bus    *memory.Bus
		deps   store.Deps
		s      *store.Store[gadget]
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = memory.NewDriver()
		cache = memory.NewCache()
		bus = &memory.Bus{}
		log := zap.NewNop().Sugar()
		deps = store.Deps{
			Driver: driver,
			Cache:  cache,
			Bus:    bus,
			Tasks:  tasks.Inline{Log: log},
			Log:    log,
			Tenant: "shop",
		}
		s = store.New[gadget]("Gadget", deps)
	})

	create := func(fields map[string]any) gadget {
		g, err := s.Create(ctx, store.CreateInput{Fields: fields, Uniques: []string{"code"}, Fillable: gadgetFillable})
		Expect(err).ShouldNot(HaveOccurred())
		return g
	}

	Context("create and read", func() {
		It("stores the fillable fields only", func() {
			g := create(map[string]any{"name": "Kettle", "code": "K1", "stock": float64(0), "active": false, "secret": "x"})
			Expect(g.ID).ShouldNot(BeEmpty())
			Expect(g.CreatedAt).ShouldNot(BeZero())

			got, err := s.GetByID(ctx, g.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("Kettle"))
			Expect(got.Code).Should(Equal("K1"))

			doc, err := driver.FindByID(ctx, "Gadget", g.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(doc).ShouldNot(HaveKey("secret"))
			Expect(doc).Should(HaveKeyWithValue("stock", float64(0)))
			Expect(doc).Should(HaveKeyWithValue("active", false))
		})

		It("rejects a duplicate unique key", func() {
			create(map[string]any{"name": "Kettle", "code": "K1"})

			_, err := s.Create(ctx, store.CreateInput{Fields: map[string]any{"name": "Other", "code": "K1"}, Uniques: []string{"code"}, Fillable: gadgetFillable})
			Expect(errors.Is(err, store.ErrConflict)).Should(BeTrue())
			Expect(err.Error()).Should(Equal("code is already exists"))

			page, err := s.List(ctx, store.Query{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(page.Data).Should(HaveLen(1))
		})

		It("reports a missing id as not found", func() {
			_, err := s.GetByID(ctx, "nope")
			Expect(errors.Is(err, store.ErrNotFound)).Should(BeTrue())
		})

		It("paginates lists", func() {
			for _, n := range []string{"a", "b", "c"} {
				create(map[string]any{"name": n})
			}
			page, err := s.List(ctx, store.Query{Page: 2, PerPage: 2, Sort: "name"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(page.Data).Should(HaveLen(1))
			Expect(page.Data[0].Name).Should(Equal("c"))
			Expect(page.Pagination.TotalDocs).Should(Equal(3))
			Expect(page.Pagination.TotalPages).Should(Equal(2))
			Expect(page.Pagination.HasPrevPage).Should(BeTrue())
			Expect(page.Pagination.HasNextPage).Should(BeFalse())
			Expect(*page.Pagination.PrevPage).Should(Equal(1))
			Expect(page.Pagination.NextPage).Should(BeNil())
		})

		It("reports one page for an empty collection", func() {
			page, err := s.List(ctx, store.Query{})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(page.Data).Should(BeEmpty())
			Expect(page.Pagination.TotalPages).Should(Equal(1))
		})
	})

	Context("update", func() {
		It("merges fillable fields and keeps the id", func() {
			g := create(map[string]any{"name": "Kettle", "code": "K1", "stock": float64(3)})

			got, err := s.Update(ctx, store.UpdateInput[gadget]{
				ID:       g.ID,
				Fields:   map[string]any{"stock": float64(5), "id": "hijack"},
				Fillable: gadgetFillable,
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.ID).Should(Equal(g.ID))
			Expect(got.Stock).Should(Equal(5))
			Expect(got.Name).Should(Equal("Kettle"))
		})

		It("leaves the record untouched on conflict", func() {
			create(map[string]any{"name": "A", "code": "A1"})
			b := create(map[string]any{"name": "B", "code": "B1"})

			_, err := s.Update(ctx, store.UpdateInput[gadget]{ID: b.ID, Fields: map[string]any{"code": "A1", "name": "Z"}, Uniques: []string{"code"}})
			Expect(errors.Is(err, store.ErrConflict)).Should(BeTrue())

			got, err := s.GetByID(ctx, b.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("B"))
			Expect(got.Code).Should(Equal("B1"))
		})

		It("allows a record to keep its own unique value", func() {
			a := create(map[string]any{"name": "A", "code": "A1"})
			_, err := s.Update(ctx, store.UpdateInput[gadget]{ID: a.ID, Fields: map[string]any{"code": "A1"}, Uniques: []string{"code"}})
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("scopes by match", func() {
			g := create(map[string]any{"name": "Mine", "owner": "u1"})

			_, err := s.Update(ctx, store.UpdateInput[gadget]{Match: store.Filter{"id": g.ID, "owner": "u2"}, Fields: map[string]any{"name": "Stolen"}})
			Expect(errors.Is(err, store.ErrNotFound)).Should(BeTrue())

			got, err := s.Update(ctx, store.UpdateInput[gadget]{Match: store.Filter{"id": g.ID, "owner": "u1"}, Fields: map[string]any{"name": "Renamed"}})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("Renamed"))
		})
	})

	Context("cache", func() {
		It("drops cached entries on write", func() {
			g := create(map[string]any{"name": "Kettle"})
			_, err := s.Show(ctx, g.ID, true)
			Expect(err).ShouldNot(HaveOccurred())
			_, err = s.List(ctx, store.Query{Cacheable: true})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cache.Keys()).Should(ConsistOf("Gadget_id:"+g.ID, "Gadget_list:1_10__"))

			_, err = s.Update(ctx, store.UpdateInput[gadget]{ID: g.ID, Fields: map[string]any{"name": "Pot"}})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cache.Keys()).Should(BeEmpty())

			got, err := s.Show(ctx, g.ID, true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("Pot"))
		})

		It("keeps scoped reads apart when values run together", func() {
			Expect(s.InsertMany(ctx, []gadget{{ID: "X", Name: "Twelve's", Owner: "12"}})).Should(Succeed())

			got, err := s.ShowOne(ctx, store.Filter{"id": "X", "owner": "12"}, true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("Twelve's"))

			_, err = s.ShowOne(ctx, store.Filter{"id": "X1", "owner": "2"}, true)
			Expect(errors.Is(err, store.ErrNotFound)).Should(BeTrue())
		})

		It("never serves a cached list as a record", func() {
			create(map[string]any{"name": "Kettle"})
			_, err := s.List(ctx, store.Query{Cacheable: true})
			Expect(err).ShouldNot(HaveOccurred())

			for _, id := range []string{"list:1_10__", "list_1_10__", "id:list:1_10__"} {
				_, err := s.Show(ctx, id, true)
				Expect(errors.Is(err, store.ErrNotFound)).Should(BeTrue(), id)
			}
		})

		It("does not cache filtered lists", func() {
			create(map[string]any{"name": "Kettle"})
			_, err := s.List(ctx, store.Query{Filter: store.Filter{"name": "Kettle"}, Cacheable: true})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cache.Keys()).Should(BeEmpty())
		})
	})

	Context("with mocked storage", func() {
		var (
			ctrl *gomock.Controller
			drv  *mock_store.MockDriver
			mc   *mock_store.MockCache
		)

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
			drv = mock_store.NewMockDriver(ctrl)
			mc = mock_store.NewMockCache(ctrl)
			deps.Driver = drv
			deps.Cache = mc
			s = store.New[gadget]("Gadget", deps)
		})

		AfterEach(func() {
			ctrl.Finish()
		})

		It("serves a cache hit without touching the driver", func() {
			mc.EXPECT().Get(ctx, "Gadget_id:g1").Return([]byte(`{"id":"g1","name":"Cached"}`), true, nil).Times(1)

			got, err := s.Show(ctx, "g1", true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("Cached"))
		})

		It("reads through and remembers a miss", func() {
			mc.EXPECT().Get(ctx, "Gadget_id:g1").Return(nil, false, nil)
			drv.EXPECT().FindByID(ctx, "Gadget", "g1").Return(store.Document{"id": "g1", "name": "Fresh"}, nil).Times(1)
			mc.EXPECT().Set(ctx, "Gadget_id:g1", gomock.Any(), store.DefaultTTL).Return(nil)

			got, err := s.Show(ctx, "g1", true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Name).Should(Equal("Fresh"))
		})

		It("falls back to storage when the cache fails", func() {
			mc.EXPECT().Get(ctx, `Gadget_one:owner="owner1"`).Return(nil, false, errors.New("redis down"))
			drv.EXPECT().FindOne(ctx, "Gadget", store.Filter{"owner": "owner1"}).Return(store.Document{"id": "g1", "owner": "owner1"}, nil)
			mc.EXPECT().Set(ctx, `Gadget_one:owner="owner1"`, gomock.Any(), store.DefaultTTL).Return(errors.New("redis down"))

			got, err := s.ShowOne(ctx, store.Filter{"owner": "owner1"}, true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.ID).Should(Equal("g1"))
		})

		It("wraps driver failures as internal", func() {
			drv.EXPECT().FindByID(ctx, "Gadget", "g1").Return(nil, errors.New("connection reset"))

			_, err := s.GetByID(ctx, "g1")
			Expect(errors.Is(err, store.ErrInternal)).Should(BeTrue())
		})

		It("invalidates the resource prefix after delete", func() {
			drv.EXPECT().FindByID(ctx, "Gadget", "g1").Return(store.Document{"id": "g1", "name": "Gone"}, nil)
			drv.EXPECT().DeleteOne(ctx, "Gadget", "g1").Return(nil)
			mc.EXPECT().DeletePrefix(ctx, "Gadget_").Return(nil)

			Expect(s.Destroy(ctx, store.DestroyInput{ID: "g1"})).Should(Succeed())
		})
	})

	Context("references", func() {
		It("requires every value to exist", func() {
			a := create(map[string]any{"name": "A"})
			b := create(map[string]any{"name": "B"})

			Expect(s.ExistsAll(ctx, "id", []string{a.ID, b.ID, a.ID}, "items")).Should(Succeed())
			Expect(s.ExistsAll(ctx, "id", nil, "items")).Should(Succeed())

			err := s.ExistsAll(ctx, "id", []string{a.ID, "missing"}, "items")
			Expect(errors.Is(err, store.ErrValidation)).Should(BeTrue())
			var ve *store.ValidationError
			Expect(errors.As(err, &ve)).Should(BeTrue())
			Expect(ve.Field).Should(Equal("items"))
		})

		It("counts a value shared by several records once", func() {
			create(map[string]any{"name": "A", "owner": "u1"})
			create(map[string]any{"name": "B", "owner": "u1"})
			create(map[string]any{"name": "C", "owner": "u2"})

			Expect(s.ExistsAll(ctx, "owner", []string{"u1"}, "owners")).Should(Succeed())
			Expect(s.ExistsAll(ctx, "owner", []string{"u1", "u2"}, "owners")).Should(Succeed())
			Expect(errors.Is(s.ExistsAll(ctx, "owner", []string{"u1", "u3"}, "owners"), store.ErrValidation)).Should(BeTrue())
		})

		It("checks uniqueness with an exclusion", func() {
			a := create(map[string]any{"name": "A", "code": "A1"})
			Expect(s.IsUnique(ctx, "code", "A2", "")).Should(Succeed())
			Expect(s.IsUnique(ctx, "code", "A1", a.ID)).Should(Succeed())
			Expect(errors.Is(s.IsUnique(ctx, "code", "A1", ""), store.ErrConflict)).Should(BeTrue())
		})
	})

	Context("side effects", func() {
		It("publishes one change per write", func() {
			g := create(map[string]any{"name": "Kettle"})
			_, err := s.Update(ctx, store.UpdateInput[gadget]{ID: g.ID, Fields: map[string]any{"name": "Pot"}})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Destroy(ctx, store.DestroyInput{ID: g.ID})).Should(Succeed())

			Expect(bus.Topics()).Should(Equal([]string{"shop/create/Gadget", "shop/update/Gadget", "shop/delete/Gadget"}))
			Expect(string(bus.Messages()[2].Payload)).Should(ContainSubstring(`"name":"Pot"`))
		})

		It("unlinks the image on destroy and tolerates a missing file", func() {
			dir, err := os.MkdirTemp("", "public")
			Expect(err).ShouldNot(HaveOccurred())
			defer os.RemoveAll(dir)
			Expect(os.MkdirAll(filepath.Join(dir, "images"), 0o755)).Should(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "images", "k.png"), []byte("png"), 0o644)).Should(Succeed())

			deps.PublicDir = dir
			s = store.New[gadget]("Gadget", deps)

			withFile := create(map[string]any{"name": "Kettle", "image": "images/k.png"})
			Expect(s.Destroy(ctx, store.DestroyInput{ID: withFile.ID, ImageKey: "image"})).Should(Succeed())
			_, err = os.Stat(filepath.Join(dir, "images", "k.png"))
			Expect(os.IsNotExist(err)).Should(BeTrue())

			without := create(map[string]any{"name": "Pot", "image": "images/gone.png"})
			Expect(s.Destroy(ctx, store.DestroyInput{ID: without.ID, ImageKey: "image"})).Should(Succeed())
			_, err = s.GetByID(ctx, without.ID)
			Expect(errors.Is(err, store.ErrNotFound)).Should(BeTrue())
		})

		It("reports bulk deletes", func() {
			create(map[string]any{"name": "A", "owner": "u1"})
			create(map[string]any{"name": "B", "owner": "u1"})
			create(map[string]any{"name": "C", "owner": "u2"})

			n, err := s.DeleteMany(ctx, store.Filter{"owner": "u1"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(2))
		})
	})
})
