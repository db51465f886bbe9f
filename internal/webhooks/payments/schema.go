package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBase = "https://bidhouse.schemas.local/webhooks/"

const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "type", "created", "data"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "object": {"const": "event"},
    "type": {"type": "string", "minLength": 1},
    "created": {"type": "integer", "minimum": 0},
    "livemode": {"type": "boolean"},
    "data": {
      "type": "object",
      "required": ["object"],
      "properties": {"object": {"type": "object"}}
    }
  }
}`

const paymentIntentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "amount", "currency"],
  "properties": {
    "id": {"type": "string", "pattern": "^pi_"},
    "amount": {"type": "integer", "minimum": 0},
    "amount_received": {"type": "integer", "minimum": 0},
    "currency": {"type": "string", "minLength": 3},
    "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

const chargeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "amount_refunded", "currency"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "amount": {"type": "integer", "minimum": 0},
    "amount_refunded": {"type": "integer", "minimum": 0},
    "refunded": {"type": "boolean"},
    "currency": {"type": "string", "minLength": 3},
    "payment_intent": {"type": ["string", "null"]},
    "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

const refundSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "amount", "currency", "status"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "amount": {"type": "integer", "minimum": 0},
    "currency": {"type": "string", "minLength": 3},
    "status": {"type": "string"},
    "charge": {"type": ["string", "null"]},
    "payment_intent": {"type": ["string", "null"]},
    "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

const disputeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "amount", "currency", "status"],
  "properties": {
    "id": {"type": "string", "pattern": "^dp_"},
    "amount": {"type": "integer", "minimum": 0},
    "currency": {"type": "string", "minLength": 3},
    "status": {"type": "string"},
    "reason": {"type": ["string", "null"]},
    "charge": {"type": ["string", "null"]},
    "payment_intent": {"type": ["string", "null"]},
    "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

var (
	envelope = mustCompile("envelope", envelopeSchema)
	objects  = map[objectKind]*jsonschema.Schema{
		objectPaymentIntent: mustCompile("payment_intent", paymentIntentSchema),
		objectCharge:        mustCompile("charge", chargeSchema),
		objectRefund:        mustCompile("refund", refundSchema),
		objectDispute:       mustCompile("dispute", disputeSchema),
	}
)

func mustCompile(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("%s%s.schema.json", schemaBase, name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("load %s schema: %v", name, err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("compile %s schema: %v", name, err))
	}
	return compiled
}

func validateEnvelope(payload []byte) error {
	return validate(envelope, payload)
}

func validateObject(kind objectKind, raw []byte) error {
	schema, ok := objects[kind]
	if !ok {
		return fmt.Errorf("no schema for object kind %d", kind)
	}
	return validate(schema, raw)
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return schema.Validate(doc)
}
