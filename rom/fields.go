package rom

import (
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/expr"
	"github.com/seehuhn-romtool/romtool/internal/tabular"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/structure"
)

// parseFieldRow builds a structure.FieldDef from one structs/*.tsv or
// bitfields/*.tsv row (spec §6's column list: "id, name, type, origin?,
// unit?, offset, size, arg?, ref?, display?, order?, comment?"). where
// identifies the source file for error messages.
func parseFieldRow(row tabular.Row, where string) (*structure.FieldDef, error) {
	id := strings.TrimSpace(row["id"])
	if id == "" {
		return nil, &romerr.MapError{Where: where, Msg: "field row is missing id"}
	}

	offsetSrc := orDefault(row["offset"], "0")
	offsetExpr, err := expr.Parse(offsetSrc)
	if err != nil {
		return nil, &romerr.MapError{Where: where, Msg: "field " + id + ": bad offset expression: " + err.Error()}
	}

	var sizeExpr *expr.Expr
	if sizeSrc := strings.TrimSpace(row["size"]); sizeSrc != "" {
		sizeExpr, err = expr.Parse(sizeSrc)
		if err != nil {
			return nil, &romerr.MapError{Where: where, Msg: "field " + id + ": bad size expression: " + err.Error()}
		}
	}

	var arg int64
	if argSrc := strings.TrimSpace(row["arg"]); argSrc != "" {
		arg, err = parseRowInt(argSrc)
		if err != nil {
			return nil, &romerr.MapError{Where: where, Msg: "field " + id + ": bad arg: " + err.Error()}
		}
	}

	var order int64
	if orderSrc := strings.TrimSpace(row["order"]); orderSrc != "" {
		order, err = parseRowInt(orderSrc)
		if err != nil {
			return nil, &romerr.MapError{Where: where, Msg: "field " + id + ": bad order: " + err.Error()}
		}
	}

	origin, sibling := structure.ParseOrigin(row["origin"])

	return &structure.FieldDef{
		ID:      id,
		Name:    strings.TrimSpace(row["name"]),
		Type:    strings.TrimSpace(row["type"]),
		Origin:  origin,
		Sibling: sibling,
		Unit:    structure.ParseUnit(row["unit"]),
		Offset:  offsetExpr,
		Size:    sizeExpr,
		Arg:     arg,
		Ref:     strings.TrimSpace(row["ref"]),
		Display: strings.TrimSpace(row["display"]),
		Order:   int(order),
		Comment: row["comment"],
	}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func parseRowInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 0, 64)
}
