package webui

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// App is one installed package's identity and display label.
type App struct {
	Package string `json:"package"`
	Name    string `json:"name"`
}

// AppCache caches installed-package labels, refreshed incrementally:
// only newly seen packages have their label resolved, and packages no
// longer installed are evicted. Grounded on
// original_source/src/webui/app_cache.rs.
type AppCache struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewAppCache returns an empty cache.
func NewAppCache() *AppCache {
	return &AppCache{cache: make(map[string]string)}
}

// Apps returns the cached entries sorted by package name.
func (c *AppCache) Apps() []App {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]App, 0, len(c.cache))
	for pkg, name := range c.cache {
		out = append(out, App{Package: pkg, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package < out[j].Package })
	return out
}

// Refresh lists currently installed packages, resolves labels only
// for packages not already cached, and evicts cached packages that
// are no longer installed.
func (c *AppCache) Refresh(ctx context.Context) error {
	packages, err := listPackages(ctx)
	if err != nil {
		return err
	}
	current := make(map[string]bool, len(packages))
	for _, p := range packages {
		current[p] = true
	}

	var toResolve []string
	c.mu.RLock()
	for _, p := range packages {
		if _, ok := c.cache[p]; !ok {
			toResolve = append(toResolve, p)
		}
	}
	c.mu.RUnlock()

	resolved := make(map[string]string, len(toResolve))
	for _, pkg := range toResolve {
		label, ok := fetchAppLabel(ctx, pkg)
		if !ok {
			label = pkg
		}
		resolved[pkg] = label
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for pkg, label := range resolved {
		c.cache[pkg] = label
	}
	for pkg := range c.cache {
		if !current[pkg] {
			delete(c.cache, pkg)
		}
	}
	return nil
}

func listPackages(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", "pm list packages 2>/dev/null").Output()
	if err != nil {
		return nil, fmt.Errorf("pm list packages: %w", err)
	}

	seen := make(map[string]bool)
	var packages []string
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		pkg, ok := strings.CutPrefix(line, "package:")
		if !ok || pkg == "" {
			continue
		}
		if !seen[pkg] {
			seen[pkg] = true
			packages = append(packages, pkg)
		}
	}
	sort.Strings(packages)
	return packages, nil
}

func fetchAppLabel(ctx context.Context, pkg string) (string, bool) {
	out, err := exec.CommandContext(ctx, "pm", "dump", pkg).Output()
	if err != nil {
		return "", false
	}

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "application-label") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label := strings.Trim(strings.TrimSpace(value), "'")
		label = strings.TrimSpace(label)
		if label != "" {
			return label, true
		}
	}
	return "", false
}
