package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/arbor/internal/ir"
)

// LoadTreeDir loads every CUE file under dir and compiles the tree
// definitions found beneath the top-level "tree" struct. The files must
// share a package clause, as usual for a CUE directory; definitions from
// all files are unified before compilation.
//
// Returns the compiled specs keyed by tree name. Compilation stops at the
// first broken tree. A directory without a single tree is an error.
func LoadTreeDir(dir string) (map[string]*ir.TreeSpec, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("trees directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing trees directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	specs, err := CompileTrees(value)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no trees found in %s", dir)
	}
	return specs, nil
}

// CompileTrees compiles every tree beneath the value's top-level "tree"
// struct. The struct label becomes the tree name.
func CompileTrees(v cue.Value) (map[string]*ir.TreeSpec, error) {
	treesVal := v.LookupPath(cue.ParsePath("tree"))
	if !treesVal.Exists() {
		return nil, fmt.Errorf("no top-level \"tree\" struct found")
	}

	iter, err := treesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	specs := make(map[string]*ir.TreeSpec)
	for iter.Next() {
		spec, compileErr := CompileTree(iter.Value())
		if compileErr != nil {
			return nil, fmt.Errorf("tree %q: %w", iter.Label(), compileErr)
		}
		specs[spec.Name] = spec
	}
	return specs, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
