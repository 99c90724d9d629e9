package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap/zapcore"

	"github.com/Checker-Finance/lakefs-adapter/pkg/utils"
)

const (
	loginInformationType = "LoginInformation"

	FieldAccessKeyID     = "access_key_id"
	FieldSecretAccessKey = "secret_access_key"
)

// LoginInformationSchema is the JSON schema of the lakeFS login request body.
// Undeclared properties are allowed and kept as additional properties.
const LoginInformationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "LoginInformation",
  "type": "object",
  "required": ["access_key_id", "secret_access_key"],
  "properties": {
    "access_key_id": {"not": {"type": ["object", "array", "null"]}},
    "secret_access_key": {"not": {"type": ["object", "array", "null"]}}
  },
  "additionalProperties": true
}`

var loginInformationSchema = mustCompileSchema(
	loginInformationType,
	[]string{FieldAccessKeyID, FieldSecretAccessKey},
	LoginInformationSchema,
)

// LoginInformation is the body of POST /auth/login: an access key pair plus any
// undeclared properties the caller or server attached.
//
// The zero value has both keys unset. A LoginInformation is not safe for
// concurrent mutation.
type LoginInformation struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`

	additional map[string]Value
}

// NewLoginInformation returns a payload with both required fields set.
func NewLoginInformation(accessKeyID, secretAccessKey string) *LoginInformation {
	return &LoginInformation{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}
}

// NewLoginInformationWithDefaults returns a payload with nothing set.
func NewLoginInformationWithDefaults() *LoginInformation {
	return &LoginInformation{}
}

func (o *LoginInformation) GetAccessKeyID() string {
	if o == nil {
		return ""
	}
	return o.AccessKeyID
}

func (o *LoginInformation) SetAccessKeyID(v string) {
	o.AccessKeyID = v
}

// WithAccessKeyID sets the access key id and returns o.
func (o *LoginInformation) WithAccessKeyID(v string) *LoginInformation {
	o.AccessKeyID = v
	return o
}

func (o *LoginInformation) GetSecretAccessKey() string {
	if o == nil {
		return ""
	}
	return o.SecretAccessKey
}

func (o *LoginInformation) SetSecretAccessKey(v string) {
	o.SecretAccessKey = v
}

// WithSecretAccessKey sets the secret access key and returns o.
func (o *LoginInformation) WithSecretAccessKey(v string) *LoginInformation {
	o.SecretAccessKey = v
	return o
}

// PutAdditionalProperty sets or replaces an undeclared property. Declared field
// names are reserved and silently ignored.
func (o *LoginInformation) PutAdditionalProperty(key string, v Value) {
	if isLoginInformationField(key) {
		return
	}
	if o.additional == nil {
		o.additional = make(map[string]Value)
	}
	o.additional[key] = v
}

// WithAdditionalProperty is the chaining form of PutAdditionalProperty.
func (o *LoginInformation) WithAdditionalProperty(key string, v Value) *LoginInformation {
	o.PutAdditionalProperty(key, v)
	return o
}

// GetAdditionalProperty returns the undeclared property stored under key.
func (o *LoginInformation) GetAdditionalProperty(key string) (Value, bool) {
	if o == nil || o.additional == nil {
		return Value{}, false
	}
	v, ok := o.additional[key]
	return v, ok
}

// GetAdditionalProperties returns a copy of the undeclared properties, or nil if there are none.
func (o *LoginInformation) GetAdditionalProperties() map[string]Value {
	if o == nil || o.additional == nil {
		return nil
	}
	out := make(map[string]Value, len(o.additional))
	for k, v := range o.additional {
		out[k] = v
	}
	return out
}

func isLoginInformationField(key string) bool {
	return key == FieldAccessKeyID || key == FieldSecretAccessKey
}

// Validate checks that both keys are populated before the payload is sent.
func (o *LoginInformation) Validate() error {
	if strings.TrimSpace(o.GetAccessKeyID()) == "" {
		return &SchemaError{Type: loginInformationType, Field: FieldAccessKeyID, Reason: ReasonMissing, Message: "access_key_id is required"}
	}
	if strings.TrimSpace(o.GetSecretAccessKey()) == "" {
		return &SchemaError{Type: loginInformationType, Field: FieldSecretAccessKey, Reason: ReasonMissing, Message: "secret_access_key is required"}
	}
	return nil
}

// ValidateLoginInformation checks a raw JSON document against LoginInformationSchema
// without decoding it.
func ValidateLoginInformation(doc []byte) error {
	return loginInformationSchema.validate(doc)
}

// MarshalJSON writes the declared fields first, then every additional property
// flattened into the same object in key order.
func (o LoginInformation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s field %q: %w", loginInformationType, key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if err := write(FieldAccessKeyID, o.AccessKeyID); err != nil {
		return nil, err
	}
	if err := write(FieldSecretAccessKey, o.SecretAccessKey); err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(o.additional) {
		if isLoginInformationField(k) {
			continue
		}
		if err := write(k, o.additional[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON validates data against the schema and only then populates o.
// On error o is left unchanged.
func (o *LoginInformation) UnmarshalJSON(data []byte) error {
	if err := ValidateLoginInformation(data); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode %s: %w", loginInformationType, err)
	}

	accessKeyID, err := scalarText(loginInformationType, FieldAccessKeyID, fields[FieldAccessKeyID])
	if err != nil {
		return err
	}
	secretAccessKey, err := scalarText(loginInformationType, FieldSecretAccessKey, fields[FieldSecretAccessKey])
	if err != nil {
		return err
	}

	var additional map[string]Value
	for _, k := range sortedKeys(fields) {
		if isLoginInformationField(k) {
			continue
		}
		v, err := decodeValue(loginInformationType, k, fields[k])
		if err != nil {
			return err
		}
		if additional == nil {
			additional = make(map[string]Value)
		}
		additional[k] = v
	}

	*o = LoginInformation{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		additional:      additional,
	}
	return nil
}

// ToJSON returns the wire form of o.
func (o *LoginInformation) ToJSON() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoginInformationFromJSON decodes and validates a LoginInformation document.
func LoginInformationFromJSON(doc string) (*LoginInformation, error) {
	var o LoginInformation
	if err := json.Unmarshal([]byte(doc), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// LoginInformationFromMap builds a payload from a flat string map such as a
// secrets manager entry. Keys other than the declared fields become string
// additional properties.
func LoginInformationFromMap(m map[string]string) (*LoginInformation, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var o LoginInformation
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Equal reports whether o and other hold the same keys and additional properties.
func (o *LoginInformation) Equal(other *LoginInformation) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil {
		return false
	}
	return o.AccessKeyID == other.AccessKeyID &&
		o.SecretAccessKey == other.SecretAccessKey &&
		valueMapsEqual(o.additional, other.additional)
}

// Hash is consistent with Equal: equal payloads hash equal.
func (o *LoginInformation) Hash() uint64 {
	if o == nil {
		return 0
	}
	d := xxhash.New()
	writeHashString(d, o.AccessKeyID)
	writeHashString(d, o.SecretAccessKey)
	for _, k := range sortedKeys(o.additional) {
		writeHashString(d, k)
		// Value encoding is canonical: object keys sorted, numbers by literal.
		enc, _ := o.additional[k].MarshalJSON()
		writeHashString(d, string(enc))
	}
	return d.Sum64()
}

func writeHashString(d *xxhash.Digest, s string) {
	_, _ = fmt.Fprintf(d, "%d:", len(s))
	_, _ = d.WriteString(s)
}

// String renders o for diagnostics. It includes the secret; use the zap
// marshaler for logs.
func (o *LoginInformation) String() string {
	if o == nil {
		return "null"
	}
	var sb strings.Builder
	sb.WriteString("class LoginInformation {\n")
	sb.WriteString("    accessKeyId: " + indented(o.AccessKeyID) + "\n")
	sb.WriteString("    secretAccessKey: " + indented(o.SecretAccessKey) + "\n")
	additional := "null"
	if o.additional != nil {
		additional = renderValueMap(o.additional)
	}
	sb.WriteString("    additionalProperties: " + indented(additional) + "\n")
	sb.WriteString("}")
	return sb.String()
}

func indented(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}

// MarshalLogObject implements zapcore.ObjectMarshaler with the secret masked.
func (o *LoginInformation) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(FieldAccessKeyID, o.GetAccessKeyID())
	enc.AddString(FieldSecretAccessKey, utils.MaskSecret(o.GetSecretAccessKey()))
	if len(o.additional) > 0 {
		enc.AddString("additional_properties", renderValueMap(o.additional))
	}
	return nil
}
