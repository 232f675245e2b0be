// Package models defines the data shapes shared across folio: content
// documents, plans and their actions, ledger change records and events.
package models

// IDField is the document field that holds a record's identifier.
const IDField = "id"

// deletedField marks a change record's NewData as a deletion.
const deletedField = "__deleted"

// Document is a free-form content record keyed by field name.
type Document map[string]interface{}

// ID returns the record identifier, or "" when absent.
func (d Document) ID() string {
	if d == nil {
		return ""
	}
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// WithoutID returns a copy of the document with the id field removed.
func (d Document) WithoutID() Document {
	out := d.Clone()
	if out != nil {
		delete(out, IDField)
	}
	return out
}

// DeletionMarker returns the sentinel stored as NewData for deletes.
func DeletionMarker() Document {
	return Document{deletedField: true}
}

// IsDeletionMarker reports whether d is the deletion sentinel.
func (d Document) IsDeletionMarker() bool {
	if len(d) != 1 {
		return false
	}
	v, ok := d[deletedField].(bool)
	return ok && v
}
