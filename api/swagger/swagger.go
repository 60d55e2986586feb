package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SchoolCore SMS API",
        "description": "Multi-tenant school management core: grading, results, CBT score import and promotions",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Calendar", "description": "Academic sessions and terms"},
        {"name": "Grading", "description": "Grading scales and ranges"},
        {"name": "Components", "description": "Assessment components"},
        {"name": "Results", "description": "Result entry and export"},
        {"name": "CBT", "description": "CBT score import lifecycle"},
        {"name": "Promotions", "description": "Student promotion batches"},
        {"name": "Pins", "description": "Result-check pins"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List academic sessions",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SessionRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/{id}/terms": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List a session's terms",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a term",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TermRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Dates overlap an existing term"}
                }
            }
        },
        "/terms/{id}/archive": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Archive a term, locking dependent writes",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/grading/scales": {
            "get": {
                "tags": ["Grading"],
                "summary": "List grading scales",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Grading"],
                "summary": "Create a grading scale",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScaleRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/grading/scales/{id}/ranges": {
            "put": {
                "tags": ["Grading"],
                "summary": "Replace a scale's grade ranges atomically",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateRangesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A deleted range is still referenced by results"},
                    "422": {"description": "Range set is not contiguous over 0-100"}
                }
            }
        },
        "/components": {
            "get": {
                "tags": ["Components"],
                "summary": "List assessment components",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Components"],
                "summary": "Create an assessment component",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ComponentRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/components/{id}/max-score": {
            "get": {
                "tags": ["Components"],
                "summary": "Resolve a component's effective max score",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "term_id", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/results/batch": {
            "post": {
                "tags": ["Results"],
                "summary": "Batch upsert results",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchUpsertRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Referenced students, subjects or terms missing"},
                    "409": {"description": "Term archived"}
                }
            }
        },
        "/results": {
            "get": {
                "tags": ["Results"],
                "summary": "List results",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "subject_id", "in": "query", "type": "string"},
                    {"name": "session_id", "in": "query", "type": "string"},
                    {"name": "term_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/results/export/{student_id}": {
            "get": {
                "tags": ["Results"],
                "summary": "Export a student's term results as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "path", "required": true, "type": "string"},
                    {"name": "term_id", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/cbt/links": {
            "post": {
                "tags": ["CBT"],
                "summary": "Link a quiz to an assessment component",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLinkRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/cbt/links/{id}/import": {
            "post": {
                "tags": ["CBT"],
                "summary": "Import the linked quiz's raw scores",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/cbt/links/{id}/approve": {
            "post": {
                "tags": ["CBT"],
                "summary": "Approve pending imports",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportIDsRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "An import is not pending"}
                }
            }
        },
        "/cbt/links/{id}/sync": {
            "post": {
                "tags": ["CBT"],
                "summary": "Sync approved imports into results",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/promotions": {
            "post": {
                "tags": ["Promotions"],
                "summary": "Promote a batch of students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PromoteStudentsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Target session has no terms"}
                }
            }
        },
        "/pins": {
            "post": {
                "tags": ["Pins"],
                "summary": "Issue a result-check pin",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IssuePinRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/pins/verify": {
            "post": {
                "tags": ["Pins"],
                "summary": "Verify a pin and consume one use",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyPinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid serial or pin"},
                    "409": {"description": "Usage limit reached"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "SessionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "is_current": {"type": "boolean"}
            },
            "required": ["name"]
        },
        "TermRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "start_date": {"type": "string", "format": "date-time"},
                "end_date": {"type": "string", "format": "date-time"}
            },
            "required": ["name", "start_date", "end_date"]
        },
        "CreateScaleRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "is_default": {"type": "boolean"}
            },
            "required": ["name"]
        },
        "UpdateRangesRequest": {
            "type": "object",
            "properties": {
                "ranges": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GradeRangeInput"}
                },
                "deleted_ids": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            },
            "required": ["ranges"]
        },
        "GradeRangeInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "min_score": {"type": "number"},
                "max_score": {"type": "number"},
                "grade_label": {"type": "string"},
                "description": {"type": "string"},
                "grade_point": {"type": "number"}
            },
            "required": ["grade_label"]
        },
        "ComponentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "label": {"type": "string"},
                "weight": {"type": "number"},
                "max_score": {"type": "number"},
                "order_index": {"type": "integer"},
                "subject_ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["name", "max_score"]
        },
        "BatchUpsertRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "term_id": {"type": "string"},
                "results": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ResultEntry"}
                }
            },
            "required": ["results"]
        },
        "ResultEntry": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "session_id": {"type": "string"},
                "term_id": {"type": "string"},
                "component_id": {"type": "string"},
                "total_score": {"type": "number"},
                "remarks": {"type": "string"}
            },
            "required": ["student_id", "subject_id", "total_score"]
        },
        "CreateLinkRequest": {
            "type": "object",
            "properties": {
                "quiz_id": {"type": "string"},
                "component_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "class_id": {"type": "string"},
                "session_id": {"type": "string"},
                "term_id": {"type": "string"},
                "mapping_type": {"type": "string", "enum": ["direct", "percentage", "scaled"]},
                "max_score_override": {"type": "number"},
                "auto_sync": {"type": "boolean"}
            },
            "required": ["quiz_id", "component_id", "mapping_type"]
        },
        "ImportIDsRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}},
                "reason": {"type": "string"}
            },
            "required": ["ids"]
        },
        "PromoteStudentsRequest": {
            "type": "object",
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "to_class_id": {"type": "string"},
                "to_arm_id": {"type": "string"},
                "to_section_id": {"type": "string"},
                "to_session_id": {"type": "string"},
                "term_id": {"type": "string"},
                "retain_subjects": {"type": "boolean"}
            },
            "required": ["student_ids", "to_class_id", "to_session_id"]
        },
        "IssuePinRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "session_id": {"type": "string"},
                "term_id": {"type": "string"}
            }
        },
        "VerifyPinRequest": {
            "type": "object",
            "properties": {
                "serial": {"type": "string"},
                "pin": {"type": "string"}
            },
            "required": ["serial", "pin"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_items": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
