package outbox

const logCreatedSchema = `{
  "type": "object",
  "title": "LogCreated",
  "properties": {
    "log_id": {"type": "string"},
    "user_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["exercise", "meal"]},
    "logged_at": {"type": "string", "format": "date-time"},
    "weekday": {"type": "string"},
    "exercise_type": {"type": "string"},
    "duration_min": {"type": "integer", "minimum": 0},
    "calories_burned": {"type": "number", "minimum": 0},
    "calories": {"type": "number", "minimum": 0},
    "carbs": {"type": "number", "minimum": 0},
    "fat": {"type": "number", "minimum": 0},
    "protein": {"type": "number", "minimum": 0},
    "has_photo": {"type": "boolean"},
    "imported": {"type": "boolean"},
    "version": {"type": "string"}
  },
  "required": ["log_id", "user_id", "kind", "has_photo", "version"],
  "additionalProperties": false
}`

const logDeletedSchema = `{
  "type": "object",
  "title": "LogDeleted",
  "properties": {
    "log_id": {"type": "string"},
    "user_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["exercise", "meal"]},
    "duration_min": {"type": "integer", "minimum": 0},
    "calories": {"type": "number", "minimum": 0},
    "protein": {"type": "number", "minimum": 0},
    "same_day": {"type": "boolean"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["log_id", "user_id", "kind", "same_day", "deleted_at"],
  "additionalProperties": false
}`

const photoDetachedSchema = `{
  "type": "object",
  "title": "PhotoDetached",
  "properties": {
    "log_id": {"type": "string"},
    "user_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["exercise", "meal"]},
    "photo_url": {"type": "string"},
    "detached_at": {"type": "string", "format": "date-time"}
  },
  "required": ["log_id", "user_id", "kind", "photo_url", "detached_at"],
  "additionalProperties": false
}`
