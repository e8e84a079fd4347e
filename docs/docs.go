// Package docs містить Swagger опис JSON API (формат swag)
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
        "/api/v1/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionSnapshot"}}
                }
            }
        },
        "/api/v1/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["checkout"],
                "summary": "Products",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Product"}}}
                }
            }
        },
        "/api/v1/navigate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Navigate",
                "parameters": [
                    {"description": "Page", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.NavigateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionSnapshot"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionSnapshot"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/auth/signup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign up",
                "parameters": [
                    {"description": "Sign up data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.SignUpRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/auth/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/profile/refresh": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Refresh profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionSnapshot"}}
                }
            }
        },
        "/api/v1/checkout": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["checkout"],
                "summary": "Checkout",
                "parameters": [
                    {"description": "Price ID", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.CheckoutResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": true}},
                    "502": {"description": "Bad Gateway", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health Check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "models.Identity": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "user_metadata": {"type": "object", "additionalProperties": true},
                "created_at": {"type": "string"}
            }
        },
        "models.Profile": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "credits": {"type": "integer"},
                "telegram_connected": {"type": "boolean"},
                "telegram_connection_key": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.SessionSnapshot": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/models.Identity"},
                "profile": {"$ref": "#/definitions/models.Profile"},
                "loading": {"type": "boolean"},
                "page": {"type": "string", "enum": ["home", "login", "signup", "dashboard", "success"]},
                "rendered_page": {"type": "string"},
                "session_id": {"type": "string"}
            }
        },
        "models.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "price_id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "number"},
                "mode": {"type": "string", "enum": ["payment", "subscription"]},
                "popular": {"type": "boolean"}
            }
        },
        "models.NavigateRequest": {
            "type": "object",
            "required": ["page"],
            "properties": {"page": {"type": "string"}}
        },
        "models.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.SignUpRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "name": {"type": "string"}
            }
        },
        "models.CheckoutRequest": {
            "type": "object",
            "required": ["price_id"],
            "properties": {"price_id": {"type": "string"}}
        },
        "models.CheckoutResponse": {
            "type": "object",
            "properties": {"url": {"type": "string"}}
        }
    }
}`

// SwaggerInfo містить метадані опису API
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "VideoGen Web API",
	Description:      "JSON API сесії відвідувача, автентифікації і checkout",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
