package webui

import "testing"

func TestAppCacheAppsSortedByPackage(t *testing.T) {
	c := NewAppCache()
	c.cache["com.zeta"] = "Zeta"
	c.cache["com.alpha"] = "Alpha"
	c.cache["com.mid"] = "Mid"

	apps := c.Apps()
	if len(apps) != 3 {
		t.Fatalf("expected 3 apps, got %d", len(apps))
	}
	for i := 1; i < len(apps); i++ {
		if apps[i-1].Package > apps[i].Package {
			t.Fatalf("apps not sorted: %v", apps)
		}
	}
}

func TestAppCacheEmpty(t *testing.T) {
	c := NewAppCache()
	if apps := c.Apps(); len(apps) != 0 {
		t.Fatalf("expected empty cache to report no apps, got %v", apps)
	}
}
