package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Sessionguard API",
        "description": "Device-bound session management with IP binding and admin device controls",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, logout and current session"},
        {"name": "User", "description": "Self-service device management"},
        {"name": "Fingerprint", "description": "Server-side fingerprint derivation"},
        {"name": "Admin", "description": "Device administration"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Device blocked or account inactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Client address could not be resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/session": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Session invalid or IP changed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/user/current-ip": {
            "get": {
                "tags": ["User"],
                "summary": "Caller address",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/user/devices": {
            "get": {
                "tags": ["User"],
                "summary": "List devices",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["User"],
                "summary": "Logout other devices",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "action", "in": "query", "required": true, "type": "string", "enum": ["logout-others"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unsupported action", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/user/device-count": {
            "get": {
                "tags": ["User"],
                "summary": "Active address count",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/user/ip-history": {
            "get": {
                "tags": ["User"],
                "summary": "Login address history",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fingerprint": {
            "post": {
                "tags": ["Fingerprint"],
                "summary": "Derive fingerprint",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FingerprintRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid signal bundle", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/user-devices": {
            "get": {
                "tags": ["Admin"],
                "summary": "List a user's devices",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "user_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Admin"],
                "summary": "Apply a device action",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminDeviceActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Device not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/user-devices/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export a user's devices",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "user_id", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file"}
                }
            }
        }
    },
    "definitions": {
        "DeviceMetadata": {
            "type": "object",
            "properties": {
                "device_name": {"type": "string"},
                "browser_info": {"type": "string"},
                "os_info": {"type": "string"},
                "screen_resolution": {"type": "string"},
                "timezone": {"type": "string"},
                "language": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["telegram_username", "password", "fingerprint"],
            "properties": {
                "telegram_username": {"type": "string"},
                "password": {"type": "string"},
                "fingerprint": {"type": "string", "pattern": "^[0-9a-f]{16}$"},
                "device": {"$ref": "#/definitions/DeviceMetadata"}
            }
        },
        "Signals": {
            "type": "object",
            "properties": {
                "screen_width": {"type": "integer"},
                "screen_height": {"type": "integer"},
                "color_depth": {"type": "integer"},
                "pixel_depth": {"type": "integer"},
                "timezone": {"type": "string"},
                "language": {"type": "string"},
                "user_agent": {"type": "string"},
                "platform": {"type": "string"},
                "cpu_cores": {"type": "integer"},
                "device_memory": {"type": "number"},
                "canvas": {"type": "string"},
                "webgl": {"type": "string"}
            }
        },
        "FingerprintRequest": {
            "type": "object",
            "properties": {
                "signals": {"$ref": "#/definitions/Signals"}
            }
        },
        "AdminDeviceActionRequest": {
            "type": "object",
            "required": ["action", "user_id"],
            "properties": {
                "action": {"type": "string", "enum": ["block_device", "unblock_device", "logout_user_all_devices"]},
                "user_id": {"type": "string"},
                "device_fingerprint": {"type": "string"}
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
                "status": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
