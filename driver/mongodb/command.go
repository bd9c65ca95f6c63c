package mongodb

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Nemutagk/findorcreate/models"
)

// BuildCommand encodes cmd as a findAndModify database command.
func BuildCommand(cmd models.Command) (bson.D, error) {
	update, err := BuildUpdate(cmd)
	if err != nil {
		return nil, err
	}

	query := cmd.Query
	switch q := query.(type) {
	case nil:
		query = bson.D{}
	case bson.M:
		if q == nil {
			query = bson.D{}
		}
	case map[string]any:
		if q == nil {
			query = bson.D{}
		}
	}

	command := bson.D{
		{Key: "findAndModify", Value: cmd.Collection},
		{Key: "query", Value: query},
		{Key: "update", Value: update},
		{Key: "new", Value: cmd.New},
		{Key: "upsert", Value: cmd.Upsert},
	}
	if fields := Projection(cmd.Fields); fields != nil {
		command = append(command, bson.E{Key: "fields", Value: fields})
	}
	if s := SortSpec(cmd.Sort); s != nil {
		command = append(command, bson.E{Key: "sort", Value: s})
	}
	if cmd.MaxTime > 0 {
		command = append(command, bson.E{Key: "maxTimeMS", Value: cmd.MaxTime.Milliseconds()})
	}
	return append(command, cmd.Extra...), nil
}

// BuildUpdate returns the update payload for cmd.
//
// InsertOnly wraps the document in $setOnInsert so a matched record is returned
// untouched. FullUpsert sends operator documents as they are and wraps plain
// documents in $set, unless Overwrite asks for a replacement.
func BuildUpdate(cmd models.Command) (bson.M, error) {
	doc, err := toM(cmd.Document)
	if err != nil {
		return nil, err
	}

	var update bson.M
	replacement := false
	switch {
	case cmd.Mode == models.InsertOnly:
		update = bson.M{"$setOnInsert": doc}
	case isOperatorDocument(doc):
		update = doc
	case cmd.Overwrite:
		update = doc
		replacement = true
	default:
		update = bson.M{"$set": doc}
	}

	// A replacement is written to matched records too, so it never carries defaults.
	if len(cmd.Defaults) > 0 && !replacement {
		if err := applyDefaults(update, cmd.Query, cmd.Defaults); err != nil {
			return nil, err
		}
	}
	return update, nil
}

func applyDefaults(update bson.M, query any, defaults bson.M) error {
	q, err := toM(query)
	if err != nil {
		return err
	}

	var touched []string
	for k := range q {
		if !strings.HasPrefix(k, "$") {
			touched = append(touched, k)
		}
	}
	for _, operand := range update {
		touched = append(touched, keysOf(operand)...)
	}

	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if collides(k, touched) {
			continue
		}
		soi, ok := update["$setOnInsert"].(bson.M)
		if !ok {
			if soi, err = toM(update["$setOnInsert"]); err != nil {
				return err
			}
			update["$setOnInsert"] = soi
		}
		soi[k] = defaults[k]
	}
	return nil
}

// collides reports whether path equals or nests with any of paths.
func collides(path string, paths []string) bool {
	for _, p := range paths {
		if p == path || strings.HasPrefix(p, path+".") || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

func keysOf(v any) []string {
	var keys []string
	switch t := v.(type) {
	case bson.M:
		for k := range t {
			keys = append(keys, k)
		}
	case map[string]any:
		for k := range t {
			keys = append(keys, k)
		}
	case bson.D:
		for _, e := range t {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func isOperatorDocument(doc bson.M) bool {
	for k := range doc {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// Projection converts a field selection into a projection document.
// Strings follow the "name age -secret" or "name,age" form; a leading "-" excludes.
// Documents are returned unchanged.
func Projection(fields any) any {
	switch f := fields.(type) {
	case nil:
		return nil
	case string:
		return selectionDoc(splitFields(f), 1, 0)
	case []string:
		return selectionDoc(f, 1, 0)
	default:
		return fields
	}
}

// SortSpec converts "name -age" into an ordered sort document.
func SortSpec(s any) any {
	switch v := s.(type) {
	case nil:
		return nil
	case string:
		return selectionDoc(splitFields(v), 1, -1)
	case []string:
		return selectionDoc(v, 1, -1)
	default:
		return s
	}
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

func selectionDoc(fields []string, include, exclude int) any {
	var out bson.D
	for _, f := range fields {
		f = strings.TrimSpace(f)
		value := include
		switch {
		case strings.HasPrefix(f, "-"):
			f = f[1:]
			value = exclude
		case strings.HasPrefix(f, "+"):
			f = f[1:]
		}
		if f == "" {
			continue
		}
		out = append(out, bson.E{Key: f, Value: value})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toM(v any) (bson.M, error) {
	switch t := v.(type) {
	case nil:
		return bson.M{}, nil
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	case map[string]any:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	}

	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = bson.M{}
	}
	return out, nil
}
