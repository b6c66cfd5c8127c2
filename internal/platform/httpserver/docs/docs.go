// Package docs is generated by swag from the handler annotations in
// internal/platform/httpserver. Regenerate with:
//
//	swag init -g server.go -d internal/platform/httpserver,contexts/polling/live-poll/transport/http -o internal/platform/httpserver/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/poll/v1/poll": {
            "get": {
                "produces": ["application/json"],
                "tags": ["poll"],
                "summary": "Read the poll",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.PollResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Creates or replaces the single poll. The tally starts empty.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["poll"],
                "summary": "Initialize the poll",
                "parameters": [
                    {"type": "string", "description": "Actor id, checked against POLL_ADMINS when configured", "name": "X-User-Id", "in": "header"},
                    {"description": "Poll definition", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.InitPollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.PollResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/poll/v1/poll/votes": {
            "post": {
                "description": "One vote per identity per poll. The identity is X-Voter-Id (hex ed25519 key) in ed25519 mode, or X-User-Id from a trusted gateway in header mode.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["poll"],
                "summary": "Cast a vote",
                "parameters": [
                    {"type": "string", "description": "Voter public key (ed25519 mode)", "name": "X-Voter-Id", "in": "header"},
                    {"type": "string", "description": "Gateway identity (header mode)", "name": "X-User-Id", "in": "header"},
                    {"type": "string", "description": "Signature over livepoll:vote:\u003cpoll_id\u003e:\u003coption_index\u003e", "name": "X-Voter-Signature", "in": "header"},
                    {"description": "Ballot", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.VoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VoteResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "error_code": {"type": "integer"}
            }
        },
        "http.InitPollRequest": {
            "type": "object",
            "properties": {
                "question": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "deadline": {"type": "integer"}
            }
        },
        "http.VoteRequest": {
            "type": "object",
            "properties": {
                "option_index": {"type": "integer"},
                "signature": {"type": "string"},
                "poll_id": {"type": "string"}
            }
        },
        "http.OptionResponse": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "label": {"type": "string"},
                "votes": {"type": "integer"},
                "share": {"type": "number"}
            }
        },
        "http.PollResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "string"},
                "question": {"type": "string"},
                "options": {"type": "array", "items": {"$ref": "#/definitions/http.OptionResponse"}},
                "deadline": {"type": "integer"},
                "tally": {"type": "object", "additionalProperties": {"type": "integer"}},
                "total_votes": {"type": "integer"},
                "open": {"type": "boolean"},
                "version": {"type": "integer"}
            }
        },
        "http.VoteResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "string"},
                "voter": {"type": "string"},
                "option_index": {"type": "integer"},
                "option_votes": {"type": "integer"},
                "total_votes": {"type": "integer"},
                "event_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "livepoll API",
	Description:      "Single-poll voting ledger.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
