package library

import (
	"context"
	"testing"
)

func TestCacheServesUntilInvalidated(t *testing.T) {
	service, store := newTestService(t)
	cache := NewCache(service)
	defer cache.Close()
	mustCreateComponent(t, service, ComponentInput{ID: "a", Name: "A", HTML: "<p>a</p>"})

	components, err := cache.Components(context.Background())
	if err != nil || len(components) != 1 {
		t.Fatalf("unexpected components %#v %v", components, err)
	}

	// Writes that bypass the service are invisible until a change is published.
	store.components["ghost"] = Component{ID: "ghost", Name: "Ghost", HTML: "<p/>"}
	components, _ = cache.Components(context.Background())
	if len(components) != 1 {
		t.Fatalf("expected cached listing, got %d", len(components))
	}

	mustCreateComponent(t, service, ComponentInput{ID: "b", Name: "B", HTML: "<p>b</p>"})
	components, _ = cache.Components(context.Background())
	if len(components) != 3 {
		t.Fatalf("expected reload after change, got %d", len(components))
	}
}

func TestCacheInvalidatesFoldersOnReplace(t *testing.T) {
	service, _ := newTestService(t)
	cache := NewCache(service)
	defer cache.Close()

	folders, err := cache.Folders(context.Background())
	if err != nil || len(folders) != 0 {
		t.Fatalf("unexpected folders %#v %v", folders, err)
	}
	if err := service.ReplaceFolders(context.Background(), FolderSet{"news": {Label: "News"}}); err != nil {
		t.Fatalf("unexpected replace error: %v", err)
	}
	folders, _ = cache.Folders(context.Background())
	if _, ok := folders["news"]; !ok {
		t.Fatalf("expected folders to reload after replace")
	}
}

func TestCacheRenderTemplateSeesUpdatedComponent(t *testing.T) {
	service, _ := newTestService(t)
	cache := NewCache(service)
	defer cache.Close()
	mustCreateComponent(t, service, ComponentInput{ID: "a", Name: "A", HTML: "<p>old</p>"})
	if _, err := service.CreateTemplate(context.Background(), TemplateInput{ID: "t1", Name: "Page", Blocks: []Block{{ComponentID: "a"}}}); err != nil {
		t.Fatalf("unexpected template error: %v", err)
	}
	if rendered, _ := cache.RenderTemplate(context.Background(), "t1"); rendered != "<p>old</p>" {
		t.Fatalf("unexpected render %q", rendered)
	}
	if _, err := service.UpdateComponent(context.Background(), "a", ComponentInput{Name: "A", HTML: "<p>new</p>"}, nil); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if rendered, _ := cache.RenderTemplate(context.Background(), "t1"); rendered != "<p>new</p>" {
		t.Fatalf("expected render to observe update, got %q", rendered)
	}
}

func TestCacheWithoutFeedReadsThrough(t *testing.T) {
	store := newMemoryStore()
	service, err := NewService(ServiceConfig{Store: store})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	cache := NewCache(service)
	if _, err := cache.Components(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.components["a"] = Component{ID: "a", Name: "A", HTML: "<p/>"}
	components, _ := cache.Components(context.Background())
	if len(components) != 1 {
		t.Fatalf("expected read-through without feed, got %d", len(components))
	}
}
