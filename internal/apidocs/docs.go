// Package apidocs registers the OpenAPI document served by the swagger UI.
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/synastry/report": {
            "post": {
                "summary": "Symmetric compatibility report",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "pair", "required": true, "schema": {"$ref": "#/definitions/PairRequest"}}],
                "responses": {
                    "200": {"description": "report", "schema": {"type": "object"}},
                    "400": {"description": "invalid chart or birth date", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "429": {"description": "rate limited", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/synastry/directional": {
            "post": {
                "summary": "Compatibility as seen from the left party",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "pair", "required": true, "schema": {"$ref": "#/definitions/PairRequest"}}],
                "responses": {
                    "200": {"description": "directional result", "schema": {"type": "object"}},
                    "400": {"description": "invalid chart or birth date", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/synastry/batch": {
            "post": {
                "summary": "Score one subject against many candidates",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "batch", "required": true, "schema": {"$ref": "#/definitions/BatchRequest"}}],
                "responses": {
                    "200": {"description": "ranked candidates", "schema": {"type": "object"}},
                    "400": {"description": "invalid request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/synastry/tables": {
            "get": {
                "summary": "Loaded rule set summary",
                "produces": ["application/json"],
                "responses": {"200": {"description": "rule set", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "summary": "Liveness and backend status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "ok"}, "503": {"description": "degraded"}}
            }
        }
    },
    "definitions": {
        "Party": {
            "type": "object",
            "properties": {
                "chart": {"type": "object", "description": "natal chart record as emitted by the chart service"},
                "profile": {
                    "type": "object",
                    "properties": {
                        "gender": {"type": "string", "example": "female"},
                        "birthDateTime": {"type": "string", "example": "21.02.1987"}
                    }
                }
            }
        },
        "PairRequest": {
            "type": "object",
            "properties": {
                "left": {"$ref": "#/definitions/Party"},
                "right": {"$ref": "#/definitions/Party"}
            }
        },
        "BatchRequest": {
            "type": "object",
            "required": ["candidates"],
            "properties": {
                "subject": {"$ref": "#/definitions/Party"},
                "mode": {"type": "string", "enum": ["report", "directional"]},
                "candidates": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "id": {"type": "string"},
                            "party": {"$ref": "#/definitions/Party"}
                        }
                    }
                }
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "category": {"type": "string"},
                        "request_id": {"type": "string"},
                        "fields": {"type": "object"}
                    }
                }
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
	Title:            "Synastry-o-Meter API",
	Description:      "Compatibility scoring between two natal charts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
