// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package codec

// JSON schemas registered for each record type.
const (
	CommandSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "TodoCommand",
  "type": "object",
  "properties": {
    "type": { "type": "string" },
    "cmd":  { "type": "string" },
    "data": { "type": "string" }
  }
}`

	ListSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "List",
  "type": "object",
  "properties": {
    "name":   { "type": "string" },
    "status": { "type": "string", "enum": ["ACTIVE", "DELETED"] }
  },
  "required": ["name", "status"]
}`

	UpdateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "TodoUpdate",
  "type": "object",
  "properties": {
    "type":   { "type": "string" },
    "action": { "type": "string" },
    "data":   { "type": "string" }
  },
  "required": ["type", "action", "data"]
}`
)
