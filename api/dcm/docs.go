// Package dcm registers the OpenAPI document served under /swagger/.
//
// The template is maintained by hand in the layout swag emits, so it has to
// be updated alongside the @Router annotations in internal/dcm/http.
package dcm

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/dcm"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "description": "Liveness endpoint returning basic service health status, uptime, and version information\nThis endpoint always returns 200 OK if the service is running",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {
                        "description": "status, uptime, version",
                        "schema": {
                            "$ref": "#/definitions/dcmsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Readiness endpoint returning service health status and checks for critical dependencies\nAn unreachable store answers 503. A missing or dead auxiliary process only marks the service degraded,\nsince every channel keeps working without it.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {
                        "description": "status, uptime, version, checks",
                        "schema": {
                            "$ref": "#/definitions/dcmsdk.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "status, uptime, version, checks - service not ready",
                        "schema": {
                            "$ref": "#/definitions/dcmsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/v1/ipc/{channel}": {
            "post": {
                "description": "Runs the named channel with positional arguments, exactly as the UI's invoke(channel, ...args).\nChannel failures (unknown user, wrong password, full store, ...) are reported with success=false and HTTP 200.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "IPC"
                ],
                "summary": "Invoke a channel",
                "parameters": [
                    {
                        "enum": [
                            "register-user",
                            "set-user",
                            "login-user",
                            "get-settings-for-mode",
                            "download-parameter-log",
                            "download-login-history"
                        ],
                        "type": "string",
                        "description": "Channel name",
                        "name": "channel",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Positional arguments",
                        "name": "args",
                        "in": "body",
                        "schema": {
                            "type": "array",
                            "items": {}
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Channel result",
                        "schema": {
                            "$ref": "#/definitions/ipc.Response"
                        }
                    },
                    "400": {
                        "description": "Body is not a JSON array",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorResponse"
                        }
                    },
                    "413": {
                        "description": "Body too large",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dcmsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "aux": {
                    "type": "string"
                },
                "store": {
                    "type": "string"
                }
            }
        },
        "dcmsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {
                    "$ref": "#/definitions/dcmsdk.HealthChecks"
                },
                "status": {
                    "type": "string"
                },
                "uptime": {
                    "type": "string"
                },
                "version": {
                    "type": "string"
                }
            }
        },
        "domain.UserSummary": {
            "type": "object",
            "properties": {
                "lastUsedMode": {
                    "type": "string"
                },
                "serialNumber": {
                    "type": "string"
                },
                "username": {
                    "type": "string"
                }
            }
        },
        "httpx.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "error_description": {
                    "type": "string"
                }
            }
        },
        "ipc.Response": {
            "type": "object",
            "properties": {
                "directory": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "settings": {
                    "type": "object"
                },
                "success": {
                    "type": "boolean"
                },
                "user": {
                    "$ref": "#/definitions/domain.UserSummary"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "DCM Account Service API",
	Description:      "Account and parameter-history backend of the pacemaker device-configuration monitor.\n\nEvery UI channel is a POST to /v1/ipc/{channel} with a JSON array of positional arguments.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
