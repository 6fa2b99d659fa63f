package schema

// definitionSchema constrains marker definitions loaded from external
// sources (the scene store, observer tooling). Pose structure is left open;
// only the identity and control codes are pinned down.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "MarkerDefinition",
  "type": "object",
  "required": ["name", "header", "pose"],
  "properties": {
    "name": {"type": "string", "format": "marker_name"},
    "description": {"type": "string"},
    "header": {
      "type": "object",
      "required": ["frame_id"],
      "properties": {
        "frame_id": {"type": "string", "minLength": 1}
      }
    },
    "pose": {"type": "object"},
    "scale": {"type": "number", "minimum": 0},
    "controls": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "interaction_mode": {"type": "integer", "minimum": 0, "maximum": 6},
          "orientation_mode": {"type": "integer", "minimum": 0, "maximum": 2}
        }
      }
    },
    "menu_entries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title"],
        "properties": {
          "id": {"type": "integer", "minimum": 1},
          "title": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// feedbackSchema constrains feedback events arriving from observers through
// the gateway before they are let onto the bus.
const feedbackSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "MarkerFeedback",
  "type": "object",
  "required": ["marker_name", "event_type"],
  "properties": {
    "marker_name": {"type": "string", "format": "marker_name"},
    "client_id": {"type": "string", "format": "client_id"},
    "control_name": {"type": "string"},
    "event_type": {"type": "integer", "minimum": 0, "maximum": 255},
    "header": {"type": "object"},
    "pose": {"type": "object"},
    "menu_entry_id": {"type": "integer", "minimum": 0}
  }
}`
