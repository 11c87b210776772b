// objtool is a CLI utility for inspecting OBJ meshes and checking that they
// build on a device.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sqweek/dialog"

	"github.com/Faultbox/rendox/internal/assets"
	"github.com/Faultbox/rendox/internal/engine/draw"
	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/engine/gpu/wgpudevice"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/engine/scene"
	"github.com/Faultbox/rendox/pkg/mesh"
	"github.com/Faultbox/rendox/pkg/objfile"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "dump":
		cmdDump(args)
	case "bake":
		cmdBake(args)
	case "open":
		cmdOpen()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`objtool - OBJ mesh utility

Usage:
  objtool <command> [options]

Commands:
  info <file.obj>...              Show parse and vertex statistics
  dump <file.obj> [-n N]          Print unified vertices and triangles
  bake [-backend B] <file.obj>... Build meshes on a device (memory, wgpu)
  open                            Pick a file in a dialog and show info

Examples:
  objtool info cube.obj
  objtool dump -n 8 cube.obj
  objtool bake -backend wgpu models/*.obj`)
}

func load(path string) (*objfile.OBJ, *mesh.Geometry) {
	obj, err := objfile.LoadOBJ(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
		os.Exit(1)
	}
	return obj, mesh.Build(obj, path)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool info <file.obj>...")
		os.Exit(1)
	}
	for i, path := range args {
		if i > 0 {
			fmt.Println()
		}
		printInfo(path)
	}
}

func printInfo(path string) {
	obj, geom := load(path)

	corners := 3 * len(obj.Triangles)
	fmt.Printf("File:      %s\n", path)
	fmt.Printf("Positions: %d\n", len(obj.Positions))
	fmt.Printf("UVs:       %d\n", len(obj.UVs))
	fmt.Printf("Normals:   %d\n", len(obj.Normals))
	fmt.Printf("Faces:     %d (%d triangles)\n", obj.Faces, len(obj.Triangles))
	fmt.Printf("Vertices:  %d unified from %d corners", geom.VertexCount(), corners)
	if corners > 0 {
		fmt.Printf(" (%.1f%% shared)", 100*(1-float64(geom.VertexCount())/float64(corners)))
	}
	fmt.Println()

	b := geom.Bounds
	fmt.Printf("Bounds:    [%.3f %.3f %.3f] .. [%.3f %.3f %.3f]\n",
		b.Min.X(), b.Min.Y(), b.Min.Z(), b.Max.X(), b.Max.Y(), b.Max.Z())

	// Recognized but not interpreted
	if len(obj.Objects) > 0 {
		fmt.Printf("Objects:   %s\n", strings.Join(obj.Objects, ", "))
	}
	if len(obj.MaterialLibs) > 0 {
		fmt.Printf("Mtllibs:   %s\n", strings.Join(obj.MaterialLibs, ", "))
	}
	if len(obj.UseMaterials) > 0 {
		names := append([]string(nil), obj.UseMaterials...)
		sort.Strings(names)
		fmt.Printf("Materials: %s\n", strings.Join(names, ", "))
	}
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N vertices and triangles (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool dump [-n N] <file.obj>")
		os.Exit(1)
	}

	_, geom := load(fs.Arg(0))

	vertices := geom.Vertices()
	fmt.Printf("# %d vertices\n", len(vertices))
	for i, v := range vertices {
		if *limit > 0 && i >= *limit {
			fmt.Printf("# ... %d more\n", len(vertices)-i)
			break
		}
		fmt.Printf("%4d  p %8.4f %8.4f %8.4f  uv %6.3f %6.3f  n %6.3f %6.3f %6.3f\n", i,
			v.Position.X(), v.Position.Y(), v.Position.Z(),
			v.UV.X(), v.UV.Y(),
			v.Normal.X(), v.Normal.Y(), v.Normal.Z())
	}

	tris := geom.TriangleCount()
	fmt.Printf("# %d triangles\n", tris)
	for i := 0; i < tris; i++ {
		if *limit > 0 && i >= *limit {
			fmt.Printf("# ... %d more\n", tris-i)
			break
		}
		fmt.Printf("%4d  %d %d %d\n", i, geom.Indices[3*i], geom.Indices[3*i+1], geom.Indices[3*i+2])
	}
}

func cmdBake(args []string) {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	backend := fs.String("backend", "memory", "Device backend: memory or wgpu")
	fallback := fs.Bool("fallback", false, "Force the software adapter (wgpu only)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: objtool bake [-backend B] <file.obj>...")
		os.Exit(1)
	}

	var dev gpu.Device
	switch *backend {
	case "memory":
		dev = gpu.NewMemoryDevice()
	case "wgpu":
		wd, err := wgpudevice.New(*fallback)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer wd.Close()
		dev = wd
	default:
		fmt.Fprintf(os.Stderr, "Unknown backend: %s\n", *backend)
		os.Exit(1)
	}

	s := scene.New(resource.New(resource.WithSource(assets.NewManager())), draw.NewQueue())
	var loaded []resource.MeshDescriptor
	for _, path := range fs.Args() {
		md, err := s.LoadMesh(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			continue
		}
		loaded = append(loaded, md)
		s.Draw(md, draw.White)
	}

	batches := s.Frame(dev)
	built := make(map[resource.MeshSlot]bool, len(batches))
	for _, b := range batches {
		built[b.Descriptor.Mesh] = true
	}

	failed := 0
	for _, md := range loaded {
		if !built[md.Mesh] {
			fmt.Printf("FAIL  %s\n", md.Name)
			failed++
			continue
		}
		m, _ := s.Registry().Mesh(md.Mesh)
		fmt.Printf("ok    %-24s %6d vertices %6d indices\n", md.Name, m.Geometry.VertexCount(), m.IndexCount)
	}

	st := s.Registry().Stats()
	fmt.Fprintf(os.Stderr, "\n(%d meshes, %d failed, %d parses)\n", st.Meshes, st.Failed, st.Parses)
	if failed > 0 || len(loaded) < fs.NArg() {
		os.Exit(1)
	}
}

func cmdOpen() {
	filename, err := dialog.File().
		Filter("Wavefront OBJ", "obj").
		Filter("All Files", "*").
		Title("Open Mesh").
		Load()
	if err != nil {
		if err != dialog.ErrCancelled {
			fmt.Fprintf(os.Stderr, "File dialog error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printInfo(filename)
}
