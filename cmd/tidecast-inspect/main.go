// SPDX-License-Identifier: MIT

// Command tidecast-inspect examines tide model files and runs one-off
// extractions without the daemon.
//
//	tidecast-inspect grid <grid-file>
//	tidecast-inspect constituents <h-or-uv-file>
//	tidecast-inspect extract -model NAME -dir DIR -lon LON -lat LAT [-type z] [-db FILE]
//	tidecast-inspect convert-atlas -grid IN -out OUT [-spacing DEG]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tidecast/tidecast/internal/interp"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/otis"
	"github.com/tidecast/tidecast/internal/tide"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "grid":
		err = runGrid(os.Args[2:])
	case "constituents":
		err = runConstituents(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "convert-atlas":
		err = runConvertAtlas(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tidecast-inspect:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  tidecast-inspect grid <grid-file>
  tidecast-inspect constituents <h-or-uv-file>
  tidecast-inspect extract -model NAME -dir DIR -lon LON -lat LAT [-type z] [-db FILE]
  tidecast-inspect convert-atlas -grid IN -out OUT [-spacing DEG]`)
}

func runGrid(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("grid takes exactly one file argument")
	}
	g, err := otis.ReadGrid(args[0])
	if err != nil {
		return err
	}
	nx, ny := g.Bathymetry.Nx(), g.Bathymetry.Ny()
	wet := 0
	for _, w := range g.WetMask {
		if w {
			wet++
		}
	}
	fmt.Printf("grid:       %d x %d cells\n", nx, ny)
	fmt.Printf("x range:    %.4f .. %.4f\n", g.Bathymetry.X[0], g.Bathymetry.X[nx-1])
	fmt.Printf("y range:    %.4f .. %.4f\n", g.Bathymetry.Y[0], g.Bathymetry.Y[ny-1])
	fmt.Printf("time step:  %.1f s\n", g.TimeStep)
	fmt.Printf("wet cells:  %d of %d (%.1f%%)\n", wet, nx*ny, 100*float64(wet)/float64(nx*ny))
	fmt.Printf("boundary:   %d open-boundary cells\n", len(g.Boundary))
	return nil
}

func runConstituents(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("constituents takes exactly one file argument")
	}
	ids, err := otis.ReadConstituents(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d constituents:\n", len(ids))
	for _, id := range ids {
		fmt.Println(" ", id)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	name := fs.String("model", "", "model name")
	dir := fs.String("dir", ".", "model directory")
	lon := fs.Float64("lon", 0, "longitude in degrees east")
	lat := fs.Float64("lat", 0, "latitude in degrees north")
	typ := fs.String("type", "z", "variable: z, u, v, U or V")
	dbPath := fs.String("db", "", "model database overlay (JSON)")
	method := fs.String("method", "spline", "interpolation method")
	extrapolate := fs.Bool("extrapolate", false, "fill masked points from the nearest wet cell")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("-model is required")
	}

	var db *model.Database
	var err error
	if *dbPath != "" {
		db, err = model.LoadDatabaseFrom(*dbPath)
	} else {
		db, err = model.LoadDatabase()
	}
	if err != nil {
		return err
	}
	m, err := db.Get(*name)
	if err != nil {
		return err
	}
	t, err := tide.ParseType(*typ)
	if err != nil {
		return err
	}
	im, err := interp.ParseMethod(*method)
	if err != nil {
		return err
	}

	c, err := tide.ExtractConstants(context.Background(), m, *dir,
		[]float64{*lon}, []float64{*lat}, tide.Options{
			Type:         t,
			Method:       im,
			Extrapolate:  *extrapolate,
			ApplyFlexure: m.Flexure,
		})
	if err != nil {
		return err
	}

	fmt.Printf("model %s  (%s)  point %.4f, %.4f\n", m.Name, m.Format, *lon, *lat)
	if len(c.Depth) > 0 {
		fmt.Printf("depth: %.2f m\n", c.Depth[0])
	}
	fmt.Printf("%-6s  %12s  %10s\n", "const", "amplitude", "phase")
	for i, id := range c.Constituents {
		if c.Mask[i][0] {
			fmt.Printf("%-6s  %12s  %10s\n", id, "-", "-")
			continue
		}
		fmt.Printf("%-6s  %12.4f  %10.2f\n", id, c.Amplitude[i][0], c.Phase[i][0])
	}
	return nil
}

func runConvertAtlas(args []string) error {
	fs := flag.NewFlagSet("convert-atlas", flag.ContinueOnError)
	in := fs.String("grid", "", "ATLAS compact grid file")
	out := fs.String("out", "", "output OTIS grid file")
	spacing := fs.Float64("spacing", otis.DefaultAtlasSpacing, "output grid spacing in degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("-grid and -out are required")
	}

	ag, err := otis.ReadAtlasGrid(*in)
	if err != nil {
		return err
	}
	combined := otis.CombineAtlasGrid(ag.Bathymetry, ag.Locals, *spacing)
	wet, _, _ := otis.AtlasMask(ag, *spacing)

	g := &otis.Grid{
		Bathymetry: combined,
		WetMask:    wet,
		TimeStep:   ag.TimeStep,
	}
	if err := otis.WriteGrid(*out, g); err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d x %d cells at %.4f deg\n",
		*out, combined.Nx(), combined.Ny(), *spacing)
	return nil
}
