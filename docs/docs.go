// Package docs registers the storefront OpenAPI document served under /swagger.
package docs

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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/products": {"get": {"tags": ["products"], "summary": "List products",
            "parameters": [{"name": "page", "in": "query", "type": "integer"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Result"}}}}},
        "/products/latest": {"get": {"tags": ["products"], "summary": "Newest products",
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Result"}}}}},
        "/products/{slug}": {"get": {"tags": ["products"], "summary": "Product by slug",
            "parameters": [{"name": "slug", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "Product not found"}}}},
        "/cart": {"get": {"tags": ["cart"], "summary": "Current cart",
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Result"}}}}},
        "/cart/items": {"post": {"tags": ["cart"], "summary": "Add an item to the cart",
            "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddItemRequest"}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Validation or stock failure"}}}},
        "/cart/items/{productId}": {"delete": {"tags": ["cart"], "summary": "Remove a product line from the cart",
            "parameters": [{"name": "productId", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "Cart or item not found"}}}},
        "/orders": {
            "post": {"tags": ["orders"], "summary": "Place an order from the cart", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOrderRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failure or empty cart"}}},
            "get": {"tags": ["orders"], "summary": "Orders of the signed-in user", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}}},
        "/orders/{id}": {"get": {"tags": ["orders"], "summary": "Order details", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "Order not found"}}}},
        "/orders/{id}/payment-session": {"post": {"tags": ["orders"], "summary": "Open a payment provider session", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK"}, "503": {"description": "Payment provider is unavailable"}}}},
        "/orders/{id}/payment-session/approve": {"post": {"tags": ["orders"], "summary": "Capture an approved payment session", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"},
                {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveRequest"}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Amount mismatch"}, "503": {"description": "Payment provider is unavailable"}}}},
        "/admin/orders/{id}/pay": {"put": {"tags": ["admin"], "summary": "Mark a cash on delivery order paid", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK"}}}},
        "/admin/orders/{id}/deliver": {"put": {"tags": ["admin"], "summary": "Mark an order delivered", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK"}, "409": {"description": "Order is not paid"}}}},
        "/admin/orders/{id}/history": {"get": {"tags": ["admin"], "summary": "Audit trail of an order", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"},
                {"name": "limit", "in": "query", "type": "integer"}],
            "responses": {"200": {"description": "OK"}}}},
        "/admin/products": {"post": {"tags": ["admin"], "summary": "Create a product", "security": [{"BearerAuth": []}],
            "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProductInput"}}],
            "responses": {"201": {"description": "Created"}}}},
        "/admin/products/{id}": {
            "put": {"tags": ["admin"], "summary": "Update a product", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProductInput"}}],
                "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["admin"], "summary": "Delete a product", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}}},
        "/admin/uploads": {"post": {"tags": ["admin"], "summary": "Upload a product image", "security": [{"BearerAuth": []}],
            "consumes": ["multipart/form-data"],
            "parameters": [{"name": "image", "in": "formData", "required": true, "type": "file"}],
            "responses": {"201": {"description": "Created"}}}}
    },
    "definitions": {
        "Result": {"type": "object", "properties": {
            "success": {"type": "boolean"}, "message": {"type": "string"}, "data": {"type": "object"}}},
        "AddItemRequest": {"type": "object", "properties": {
            "product_id": {"type": "string"}, "qty": {"type": "integer"}}},
        "ApproveRequest": {"type": "object", "properties": {"session_id": {"type": "string"}}},
        "CreateOrderRequest": {"type": "object", "properties": {
            "payment_method": {"type": "string", "enum": ["PayPal", "Stripe", "CashOnDelivery"]},
            "shipping_address": {"type": "object", "properties": {
                "full_name": {"type": "string"}, "street_address": {"type": "string"}, "city": {"type": "string"},
                "postal_code": {"type": "string"}, "country": {"type": "string"}}}}},
        "ProductInput": {"type": "object", "properties": {
            "name": {"type": "string"}, "slug": {"type": "string"}, "category": {"type": "string"},
            "brand": {"type": "string"}, "description": {"type": "string"},
            "images": {"type": "array", "items": {"type": "string"}}, "price": {"type": "string"}, "rating": {"type": "string"},
            "stock": {"type": "integer"}, "is_featured": {"type": "boolean"}, "banner": {"type": "string"}}}
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Catalog, cart, checkout and order administration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
