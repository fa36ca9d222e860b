// Command selector prints function selectors.
//
//	selector 'transfer(address,uint256)' 'balanceOf(address)'
//	selector -manifest diamond.yaml
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/manifest"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

func main() {
	manifestPath := flag.String("manifest", "", "Print the selectors of every facet in a manifest")
	flag.Parse()

	if *manifestPath == "" && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(os.Stdout, *manifestPath, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, manifestPath string, signatures []string) error {
	for _, sig := range signatures {
		fmt.Fprintf(w, "%s  %s\n", selector.FromSignature(sig), sig)
	}
	if manifestPath == "" {
		return nil
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	built, err := m.Instantiate()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(built))
	for name := range built {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s:\n", name)
		f := built[name]
		sigs := []string(nil)
		if d, ok := f.(diamond.Describer); ok {
			sigs = d.Functions()
		}
		for _, sig := range sigs {
			fmt.Fprintf(w, "  %s  %s\n", selector.FromSignature(sig), sig)
		}
	}
	return nil
}
