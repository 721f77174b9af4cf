//go:build ignore

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/imgtest/pkg/manifest"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

func main() {
	if err := os.MkdirAll("schemas", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	data, err := testcase.DescriptorSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating descriptor schema: %v\n", err)
		os.Exit(1)
	}
	write(filepath.Join("schemas", "test-descriptor.json"), data)

	for _, f := range manifest.NewIndex("").Formats() {
		data, err := f.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error generating %s schema: %v\n", f.Name(), err)
			os.Exit(1)
		}
		write(filepath.Join("schemas", "manifest-"+f.Name()+".json"), data)
	}
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote", path)
}
