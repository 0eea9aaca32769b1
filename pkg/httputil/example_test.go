package httputil_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alchemeast/thesugraph/pkg/httputil"
)

func ExampleCache() {
	dir := filepath.Join(os.TempDir(), "thesugraph-example")
	cache, err := httputil.NewCache(dir, 24*time.Hour)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	if err := cache.Set("sources:q1.xml", "<document/>"); err != nil {
		fmt.Println("Error:", err)
		return
	}

	var result string
	if ok, err := cache.Get("sources:q1.xml", &result); ok && err == nil {
		fmt.Println("Cached:", result)
	}

	os.RemoveAll(dir)
	// Output:
	// Cached: <document/>
}

func ExampleCache_miss() {
	dir := filepath.Join(os.TempDir(), "thesugraph-example-miss")
	cache, _ := httputil.NewCache(dir, time.Hour)
	defer os.RemoveAll(dir)

	var result string
	ok, err := cache.Get("nonexistent", &result)
	fmt.Println("Found:", ok)
	fmt.Println("Error:", err)
	// Output:
	// Found: false
	// Error: <nil>
}
