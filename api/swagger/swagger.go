package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ClubHub API",
        "description": "Participation and survey aggregation service for club operations",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Roster", "description": "Club roster management"},
        {"name": "Attendance", "description": "Meeting ledger and rollups"},
        {"name": "Polls", "description": "Polls, votes and tallies"},
        {"name": "Schedule", "description": "Unified schedule of events and tasks"},
        {"name": "Tasks", "description": "Task management"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/attendance/snapshot": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Working snapshot for a meeting date",
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/meetings": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List saved meetings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Save a meeting snapshot",
                "parameters": [
                    {"name": "confirm", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveMeetingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Date already recorded; retry with confirm"}
                }
            }
        },
        "/attendance/meetings/{id}": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Delete a saved meeting",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/attendance/rollup": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Per-student attendance rollup",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/search/student": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance history for a stored name",
                "parameters": [
                    {"name": "name", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/search/date": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Statuses recorded on a date",
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Roster"],
                "summary": "List roster members",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Roster"],
                "summary": "Add a roster member",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/bulk": {
            "post": {
                "tags": ["Roster"],
                "summary": "Add several roster members at once",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/me/votes": {
            "get": {
                "tags": ["Polls"],
                "summary": "Poll ids the caller has voted in",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/polls": {
            "get": {
                "tags": ["Polls"],
                "summary": "List polls",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Polls"],
                "summary": "Create a poll",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PollDraft"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/polls/{id}/votes": {
            "post": {
                "tags": ["Polls"],
                "summary": "Record the caller's vote",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller is not on the roster"}
                }
            }
        },
        "/polls/{id}/results": {
            "get": {
                "tags": ["Polls"],
                "summary": "Tallied poll results",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/day": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Merged schedule for one date",
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/appointments": {
            "get": {
                "tags": ["Schedule"],
                "summary": "List scheduled events",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedule"],
                "summary": "Schedule an event",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedule"],
                "summary": "Delete every scheduled event",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/tasks": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List tasks visible to the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Tasks"],
                "summary": "Create a task",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/month": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Badges for every non-empty day of a month",
                "parameters": [
                    {"name": "year", "in": "query", "required": true, "type": "integer"},
                    {"name": "month", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SaveMeetingRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "entries": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AttendanceEntry"}
                },
                "confirm": {"type": "boolean"}
            },
            "required": ["date", "entries"]
        },
        "AttendanceEntry": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["absent", "present", "excused"]},
                "present": {"type": "boolean"}
            }
        },
        "PollDraft": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "type": {"type": "string"},
                "questions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Question"}
                }
            },
            "required": ["title", "questions"]
        },
        "Question": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "type": {"type": "string", "enum": ["multiple-choice", "text"]},
                "options": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            }
        },
        "VoteRequest": {
            "type": "object",
            "properties": {
                "answers": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
