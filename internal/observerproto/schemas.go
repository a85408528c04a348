package observerproto

// JSON schemas for the observer handshake, served at
// /admin/v1/observer/schemas/<name>.
var Schemas = map[string]string{
	"subscribe": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "protocol_version"],
  "properties": {
    "type": {"const": "SUBSCRIBE"},
    "protocol_version": {"type": "string"},
    "name": {"type": "string", "maxLength": 64}
  }
}`,
	"welcome": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "protocol_version", "session_id", "region_id", "tick", "frame_version"],
  "properties": {
    "type": {"const": "WELCOME"},
    "protocol_version": {"type": "string"},
    "session_id": {"type": "string", "minLength": 1},
    "region_id": {"type": "string", "format": "uuid"},
    "tick": {"type": "integer", "minimum": 0},
    "frame_version": {"type": "integer", "minimum": 1}
  }
}`,
	"error": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "protocol_version", "code", "message"],
  "properties": {
    "type": {"const": "ERROR"},
    "protocol_version": {"type": "string"},
    "code": {"type": "string", "pattern": "^E_[A-Z_]+$"},
    "message": {"type": "string"}
  }
}`,
	"bootstrap": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["protocol_version", "region_id", "region_name", "tick", "region_params", "groups", "parts", "observers"],
  "properties": {
    "protocol_version": {"type": "string"},
    "region_id": {"type": "string", "format": "uuid"},
    "region_name": {"type": "string"},
    "tick": {"type": "integer", "minimum": 0},
    "region_params": {
      "type": "object",
      "required": ["tick_rate_hz", "max_links", "frame_version"],
      "properties": {
        "tick_rate_hz": {"type": "integer", "minimum": 1},
        "max_links": {"type": "integer", "minimum": 0},
        "frame_version": {"type": "integer", "minimum": 1}
      }
    },
    "groups": {"type": "integer", "minimum": 0},
    "parts": {"type": "integer", "minimum": 0},
    "observers": {"type": "integer", "minimum": 0}
  }
}`,
}
