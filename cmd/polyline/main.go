// Command polyline decodes and encodes Google encoded polylines.
//
//	polyline '_p~iF~ps|U_ulLnnqC_mqNvxq`@'
//	polyline -encode 38.5,-120.2 40.7,-120.95 43.252,-126.453
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pal-ai/gateway/pkg/polyline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("polyline", flag.ContinueOnError)
	fs.SetOutput(stderr)
	encode := fs.Bool("encode", false, "encode lat,lng pairs instead of decoding")
	precision := fs.Int("precision", polyline.DefaultPrecision, "decimal places of precision")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: polyline [-precision n] <encoded>")
		fmt.Fprintln(stderr, "       polyline -encode [-precision n] lat,lng [lat,lng ...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *precision < 1 || *precision > 9 {
		fmt.Fprintln(stderr, "precision must be between 1 and 9")
		return 2
	}

	if *encode {
		coords, err := parseCoordinates(fs.Args())
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintln(stdout, polyline.EncodeWithPrecision(coords, *precision))
		return 0
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	coords, err := polyline.DecodeWithPrecision(fs.Arg(0), *precision)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(coords); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func parseCoordinates(args []string) ([]polyline.Coordinate, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no coordinates given")
	}

	coords := make([]polyline.Coordinate, 0, len(args))
	for _, arg := range args {
		lat, lng, ok := strings.Cut(arg, ",")
		if !ok {
			return nil, fmt.Errorf("invalid coordinate %q: want lat,lng", arg)
		}
		latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil || latitude < -90 || latitude > 90 {
			return nil, fmt.Errorf("invalid latitude in %q", arg)
		}
		longitude, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err != nil || longitude < -180 || longitude > 180 {
			return nil, fmt.Errorf("invalid longitude in %q", arg)
		}
		coords = append(coords, polyline.Coordinate{Latitude: latitude, Longitude: longitude})
	}
	return coords, nil
}
