package grpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/passport"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var errBadRequest = errors.New("malformed request")

// maxTTLSeconds is the largest whole-second TTL a time.Duration can hold.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeAssertion reads provider, auth_scheme, profile and credentials.
func decodeAssertion(in *structpb.Struct) (passport.LoginRequest, error) {
	var req passport.LoginRequest
	fields := in.GetFields()

	req.Provider = fields["provider"].GetStringValue()
	if req.Provider == "" {
		return req, badRequest("provider is required")
	}
	req.AuthScheme = models.CanonicalScheme(fields["auth_scheme"].GetStringValue())

	profile := &models.Profile{}
	if p := fields["profile"].GetStructValue(); p != nil {
		raw, err := protojson.Marshal(p)
		if err != nil {
			return req, badRequest("profile: %v", err)
		}
		if err := json.Unmarshal(raw, profile); err != nil {
			return req, badRequest("profile: %v", err)
		}
	}
	req.Profile = profile

	if c := fields["credentials"].GetStructValue(); c != nil {
		raw, err := protojson.Marshal(c)
		if err != nil {
			return req, badRequest("credentials: %v", err)
		}
		creds, err := models.DecodeCredentials(req.AuthScheme, raw)
		if err != nil {
			return req, err
		}
		req.Credentials = creds
	}
	return req, nil
}

// decodeLogin reads a login request and its options.
func decodeLogin(in *structpb.Struct) (passport.LoginRequest, passport.Options, error) {
	var opts passport.Options

	req, err := decodeAssertion(in)
	if err != nil {
		return req, opts, err
	}

	o := in.GetFields()["options"].GetStructValue().GetFields()
	if v, ok := o["auto_login"]; ok {
		if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
			return req, opts, badRequest("options.auto_login must be a bool")
		}
		opts.AutoLogin = passport.Bool(v.GetBoolValue())
	}
	opts.EmailOptional = o["email_optional"].GetBoolValue()
	if ttl := o["ttl_seconds"].GetNumberValue(); ttl > 0 {
		opts.TTL = time.Duration(int64(min(ttl, float64(maxTTLSeconds)))) * time.Second
	}
	return req, opts, nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func tokenView(t *models.AccessToken) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"token":       t.Token,
		"ttl_seconds": int64(t.TTL / time.Second),
		"created":     t.Created.Format(time.RFC3339),
	}
}

// encodeLoginResult renders a login result. The token and warning keys are
// present only when set.
func encodeLoginResult(res *passport.LoginResult) (*structpb.Struct, error) {
	out := map[string]any{
		"account":  res.Account,
		"identity": res.Identity,
		"created":  res.Created,
	}
	if res.Token != nil {
		out["token"] = tokenView(res.Token)
	}
	if res.Warning != nil {
		out["warning"] = res.Warning.Error()
	}
	return toStruct(out)
}
