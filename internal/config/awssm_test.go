package config

import "testing"

func TestResolveValue_AWSSM_NoCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	if _, err := ResolveValue("${AWS_SM:nonexistent-secret}"); err == nil {
		t.Error("expected error when AWS credentials are not configured")
	}
}

func TestJSONMember(t *testing.T) {
	v, err := jsonMember(`{"username":"app","password":"pw"}`, "password")
	if err != nil {
		t.Fatal(err)
	}
	if v != "pw" {
		t.Errorf("got %q, want pw", v)
	}
	if _, err := jsonMember(`{"password":1}`, "password"); err == nil {
		t.Error("expected error for non-string member")
	}
	if _, err := jsonMember(`not json`, "password"); err == nil {
		t.Error("expected error for non-JSON secret")
	}
}
