package structure

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var latticeRe = regexp.MustCompile(`Lattice="([^"]*)"`)

// ReadXYZ parses every frame of a (extended) XYZ stream. A Lattice="..."
// entry in the comment line sets periodic boundaries: orthorhombic when the
// cell is diagonal, triclinic otherwise.
func ReadXYZ(r io.Reader) ([]*Structure, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line++
		return sc.Text(), true
	}

	var out []*Structure
	for {
		head, ok := next()
		if !ok {
			break
		}
		head = strings.TrimSpace(head)
		if head == "" {
			continue
		}
		n, err := strconv.Atoi(head)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("line %d: particle count %q: %w", line, head, ErrSyntax)
		}
		comment, ok := next()
		if !ok {
			return nil, fmt.Errorf("line %d: missing comment line: %w", line, ErrSyntax)
		}
		s := New(strings.TrimSpace(latticeRe.ReplaceAllString(comment, "")))
		if m := latticeRe.FindStringSubmatch(comment); m != nil {
			b, err := parseLattice(m[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			s.SetBoundary(b)
		}
		for i := 0; i < n; i++ {
			rec, ok := next()
			if !ok {
				return nil, fmt.Errorf("line %d: frame truncated after %d of %d particles: %w", line, i, n, ErrSyntax)
			}
			f := strings.Fields(rec)
			if len(f) < 4 {
				return nil, fmt.Errorf("line %d: expected 'type x y z': %w", line, ErrSyntax)
			}
			var xyz [3]float64
			for k := 0; k < 3; k++ {
				if xyz[k], err = strconv.ParseFloat(f[k+1], 64); err != nil {
					return nil, fmt.Errorf("line %d: coordinate %q: %w", line, f[k+1], ErrSyntax)
				}
			}
			s.AddParticle(f[0], r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]})
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLattice(lattice string) (Boundary, error) {
	f := strings.Fields(lattice)
	if len(f) != 9 {
		return Boundary{}, fmt.Errorf("lattice needs 9 components, got %d: %w", len(f), ErrSyntax)
	}
	var v [9]float64
	for i, s := range f {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Boundary{}, fmt.Errorf("lattice component %q: %w", s, ErrSyntax)
		}
		v[i] = x
	}
	a := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	b := r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	c := r3.Vec{X: v[6], Y: v[7], Z: v[8]}
	kind := Orthorhombic
	if a.Y != 0 || a.Z != 0 || b.X != 0 || b.Z != 0 || c.X != 0 || c.Y != 0 {
		kind = Triclinic
	}
	return NewBoundary(kind, a, b, c)
}

// WriteXYZ writes one frame. comment is appended to the structure label.
func WriteXYZ(w io.Writer, s *Structure, comment string) error {
	bw := bufio.NewWriter(w)
	title := strings.TrimSpace(s.Label + " " + comment)
	if bd := s.Boundary(); bd.Type() != Open {
		box := bd.Box()
		title = strings.TrimSpace(fmt.Sprintf("Lattice=\"%g %g %g %g %g %g %g %g %g\" %s",
			box[0].X, box[0].Y, box[0].Z,
			box[1].X, box[1].Y, box[1].Z,
			box[2].X, box[2].Y, box[2].Z, title))
	}
	fmt.Fprintf(bw, "%d\n%s\n", s.N(), title)
	for _, p := range s.Particles() {
		fmt.Fprintf(bw, "%-4s %+1.7e %+1.7e %+1.7e\n", p.Type, p.Pos.X, p.Pos.Y, p.Pos.Z)
	}
	return bw.Flush()
}
