// Package objfile parses ASCII Wavefront OBJ geometry.
// Only positions, texture coordinates, normals and triangle/quad faces are
// read; grouping, smoothing and material references are recognized and skipped.
package objfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// OBJ parse errors.
var (
	ErrUnknownStatement = errors.New("unknown statement")
	ErrInvalidNumber    = errors.New("invalid number")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrCornerCount      = errors.New("face must have 3 or 4 corners")
	ErrInvalidCorner    = errors.New("invalid face corner")
)

// NoIndex marks a corner without a texture coordinate or normal reference.
const NoIndex = -1

// ParseError reports the first malformed line of a source.
type ParseError struct {
	Line    int    // 1-based line number
	Content string // offending line, trimmed
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Content, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RawAttributes holds the attribute arrays in declaration order.
type RawAttributes struct {
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec3
	Normals   []mgl32.Vec3
}

// FaceCorner references one vertex of a face. Indices are 0-based;
// UV and Normal are NoIndex when the corner does not supply them.
type FaceCorner struct {
	Position int
	UV       int
	Normal   int
}

// Triangle is one triangle of a parsed face.
type Triangle struct {
	Corners [3]FaceCorner

	// HasUV and HasNormal are face-wide: one corner without a uv (or normal)
	// clears the flag for every triangle of the face.
	HasUV     bool
	HasNormal bool

	// FaceNormal is the normalized geometric normal, used by corners that
	// carry no normal index. Degenerate triangles get a zero vector.
	FaceNormal mgl32.Vec3

	// Face is the ordinal of the source face; both halves of a quad share it.
	Face int
}

// OBJ is a parsed geometry source.
type OBJ struct {
	RawAttributes
	Triangles []Triangle

	// Faces counts source faces (a quad counts once).
	Faces int

	// Statements that were recognized but not interpreted.
	Objects      []string
	MaterialLibs []string
	UseMaterials []string
	Comments     int
}

// LoadOBJ reads and parses an OBJ file from disk.
func LoadOBJ(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading obj: %w", err)
	}
	return ParseOBJ(data)
}

// ParseOBJ parses OBJ text. Parsing stops at the first malformed line and
// returns a *ParseError; no partial result is returned.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if err := obj.parseLine(line); err != nil {
			return nil, &ParseError{
				Line:    lineNo,
				Content: strings.TrimSpace(line),
				Err:     err,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning obj: %w", err)
	}

	return obj, nil
}

func (o *OBJ) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	keyword, args := fields[0], fields[1:]
	if strings.HasPrefix(keyword, "#") {
		o.Comments++
		return nil
	}

	switch keyword {
	case "v":
		v, err := parseVec3(args)
		if err != nil {
			return err
		}
		o.Positions = append(o.Positions, v)
	case "vt":
		v, err := parseVec3(args)
		if err != nil {
			return err
		}
		o.UVs = append(o.UVs, v)
	case "vn":
		v, err := parseVec3(args)
		if err != nil {
			return err
		}
		o.Normals = append(o.Normals, normalize(v))
	case "f":
		return o.parseFace(args)
	case "o":
		o.Objects = append(o.Objects, strings.Join(args, " "))
	case "mtllib":
		o.MaterialLibs = append(o.MaterialLibs, strings.Join(args, " "))
	case "usemtl":
		o.UseMaterials = append(o.UseMaterials, strings.Join(args, " "))
	case "s":
		// Smoothing groups carry no data we use.
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatement, keyword)
	}
	return nil
}

// parseVec3 reads up to three components. Missing trailing components are
// zero and extra components (such as the optional w) are ignored.
func parseVec3(args []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i := 0; i < 3 && i < len(args); i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return v, fmt.Errorf("%w: %s", ErrInvalidNumber, args[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

func (o *OBJ) parseFace(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return fmt.Errorf("%w: got %d", ErrCornerCount, len(args))
	}

	corners := make([]FaceCorner, len(args))
	hasUV, hasNormal := true, true
	for i, token := range args {
		c, err := o.parseCorner(token)
		if err != nil {
			return err
		}
		if c.UV == NoIndex {
			hasUV = false
		}
		if c.Normal == NoIndex {
			hasNormal = false
		}
		corners[i] = c
	}

	// All-or-nothing: a face either has uvs (normals) on every corner or on none.
	for i := range corners {
		if !hasUV {
			corners[i].UV = NoIndex
		}
		if !hasNormal {
			corners[i].Normal = NoIndex
		}
	}

	face := o.Faces
	o.Faces++

	o.addTriangle([3]FaceCorner{corners[0], corners[1], corners[2]}, hasUV, hasNormal, face)
	if len(corners) == 4 {
		// Fan around corner 0, sharing the 0-2 edge with the first triangle.
		o.addTriangle([3]FaceCorner{corners[0], corners[2], corners[3]}, hasUV, hasNormal, face)
	}
	return nil
}

func (o *OBJ) addTriangle(corners [3]FaceCorner, hasUV, hasNormal bool, face int) {
	a := o.Positions[corners[0].Position]
	b := o.Positions[corners[1].Position]
	c := o.Positions[corners[2].Position]

	o.Triangles = append(o.Triangles, Triangle{
		Corners:    corners,
		HasUV:      hasUV,
		HasNormal:  hasNormal,
		FaceNormal: FaceNormal(a, b, c),
		Face:       face,
	})
}

// parseCorner parses "p", "p/t", "p//n" or "p/t/n".
func (o *OBJ) parseCorner(token string) (FaceCorner, error) {
	c := FaceCorner{UV: NoIndex, Normal: NoIndex}

	parts := strings.Split(token, "/")
	if len(parts) > 3 || parts[0] == "" {
		return c, fmt.Errorf("%w: %s", ErrInvalidCorner, token)
	}

	var err error
	if c.Position, err = resolveIndex(parts[0], len(o.Positions)); err != nil {
		return c, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.UV, err = resolveIndex(parts[1], len(o.UVs)); err != nil {
			return c, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.Normal, err = resolveIndex(parts[2], len(o.Normals)); err != nil {
			return c, err
		}
	}
	return c, nil
}

// resolveIndex converts a 1-based source index into a 0-based index,
// validating it against the number of elements declared so far.
func resolveIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumber, s)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, n, count)
	}
	return n - 1, nil
}

// FaceNormal returns the unit normal of triangle abc, or a zero vector
// when the triangle is degenerate.
func FaceNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	return normalize(a.Sub(b).Cross(a.Sub(c)))
}

func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < 1e-12 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}
