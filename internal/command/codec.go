package command

import (
	"encoding/json"
	"fmt"
)

// Record is the tagged wire and storage form of a command.
type Record struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// UnknownTagError is returned when a record carries a tag this build does not
// know. It signals corruption or a newer writer and must not be skipped.
type UnknownTagError struct {
	Tag string
}

func (e UnknownTagError) Error() string {
	return fmt.Sprintf("unknown command type: %q", e.Tag)
}

func Encode(c Command) (Record, error) {
	if c == nil {
		return Record{}, fmt.Errorf("encode: nil command")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", c.Tag(), err)
	}
	return Record{Type: c.Tag(), Payload: b}, nil
}

func EncodeAll[C Command](cmds []C) ([]Record, error) {
	out := make([]Record, 0, len(cmds))
	for _, c := range cmds {
		r, err := Encode(c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeAs[T Command](payload json.RawMessage) (Command, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode maps a record back to its concrete command.
func Decode(r Record) (Command, error) {
	var (
		c   Command
		err error
	)
	switch r.Type {
	case TagCreateTemplate:
		c, err = decodeAs[CreateTemplate](r.Payload)
	case TagUpdateTemplateTitle:
		c, err = decodeAs[UpdateTemplateTitle](r.Payload)
	case TagUpdateTemplateDescription:
		c, err = decodeAs[UpdateTemplateDescription](r.Payload)
	case TagAddTemplateTask:
		c, err = decodeAs[AddTemplateTask](r.Payload)
	case TagUpdateTemplateTaskTitle:
		c, err = decodeAs[UpdateTemplateTaskTitle](r.Payload)
	case TagDeleteTemplateTask:
		c, err = decodeAs[DeleteTemplateTask](r.Payload)
	case TagMoveTemplateTask:
		c, err = decodeAs[MoveTemplateTask](r.Payload)
	case TagUpdateTemplateTaskPositions:
		c, err = decodeAs[UpdateTemplateTaskPositions](r.Payload)
	case TagAddOrReplaceTemplateReminder:
		c, err = decodeAs[AddOrReplaceTemplateReminder](r.Payload)
	case TagDeleteTemplateReminder:
		c, err = decodeAs[DeleteTemplateReminder](r.Payload)
	case TagDeleteTemplate:
		c, err = decodeAs[DeleteTemplate](r.Payload)
	case TagCreateChecklist:
		c, err = decodeAs[CreateChecklist](r.Payload)
	case TagUpdateChecklistTitle:
		c, err = decodeAs[UpdateChecklistTitle](r.Payload)
	case TagUpdateChecklistDescription:
		c, err = decodeAs[UpdateChecklistDescription](r.Payload)
	case TagUpdateChecklistCheckbox:
		c, err = decodeAs[UpdateChecklistCheckbox](r.Payload)
	case TagDeleteChecklist:
		c, err = decodeAs[DeleteChecklist](r.Payload)
	default:
		return nil, UnknownTagError{Tag: r.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Type, err)
	}
	return c, nil
}

// Marshal encodes a command as a single JSON object {"type":..,"payload":..}.
func Marshal(c Command) ([]byte, error) {
	r, err := Encode(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

func Unmarshal(b []byte) (Command, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return Decode(r)
}

// Split separates decoded commands by the aggregate kind they apply to.
func Split(cmds []Command) (templates []TemplateCommand, checklists []ChecklistCommand) {
	for _, c := range cmds {
		switch v := c.(type) {
		case TemplateCommand:
			templates = append(templates, v)
		case ChecklistCommand:
			checklists = append(checklists, v)
		}
	}
	return templates, checklists
}
