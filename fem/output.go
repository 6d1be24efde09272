package fem

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one row per node of the first field's space: the node
// location followed by the values of every field. All fields must share a
// node layout.
func WriteCSV(w io.Writer, fns ...*Function) (err error) {
	if len(fns) == 0 {
		return
	}
	V := fns[0].FunctionSpace()
	loc, err := PhysicalNodeLocations(V)
	if err != nil {
		return
	}
	header := []string{"x"}
	values := make([][]float64, len(fns))
	for i, f := range fns {
		if f.FunctionSpace().Nodes != V.Nodes {
			return fmt.Errorf("field %s is not on the node set of %s", f.Name, fns[0].Name)
		}
		bs := f.FunctionSpace().Element.ValueSize
		for b := 0; b < bs; b++ {
			name := f.Name
			if bs > 1 {
				name = fmt.Sprintf("%s_%d", f.Name, b)
			}
			header = append(header, name)
		}
		values[i] = f.Values()
	}
	cw := csv.NewWriter(w)
	if err = cw.Write(header); err != nil {
		return
	}
	x := loc.Data()
	for n := range x {
		rec := []string{strconv.FormatFloat(x[n], 'g', -1, 64)}
		for i, f := range fns {
			bs := f.FunctionSpace().Element.ValueSize
			for b := 0; b < bs; b++ {
				rec = append(rec, strconv.FormatFloat(values[i][n*bs+b], 'g', -1, 64))
			}
		}
		if err = cw.Write(rec); err != nil {
			return
		}
	}
	cw.Flush()
	return cw.Error()
}
