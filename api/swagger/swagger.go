// Package swagger registers the OpenAPI document served at /swagger.
package swagger

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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type \"Bearer\" followed by a space and the access token."
        }
    },
    "tags": [
        {"name": "auth", "description": "Sessions and credentials"},
        {"name": "requests", "description": "Coordination request workflow"},
        {"name": "notifications", "description": "Per-recipient inboxes"},
        {"name": "activities", "description": "Internal school activities"},
        {"name": "submissions", "description": "Challenge submissions and review"},
        {"name": "stats", "description": "School dashboards"},
        {"name": "users", "description": "Account administration"},
        {"name": "admin", "description": "Operator tooling"}
    ]
}`

// SwaggerInfo holds exported swagger metadata.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Eco Coordination API",
	Description:      "Event and service request coordination between schools and partner agencies.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
