package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	"gocloud.dev/secrets/localsecrets"
)

type kmsService struct {
	mux *secrets.URLMux
}

// NewKMSService returns a KMSService backed by the gocloud default URL mux.
func NewKMSService() KMSService {
	return &kmsService{mux: secrets.DefaultURLMux()}
}

// OpenKeeper opens a keeper for keyURI. Errors name the scheme only: base64key URIs
// carry the key itself.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	u, err := url.Parse(keyURI)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("failed to open KMS keeper: malformed key URI")
	}
	if !k.mux.ValidKeeperScheme(u.Scheme) {
		return nil, fmt.Errorf("failed to open KMS keeper: unsupported scheme %q", u.Scheme)
	}

	keeper, err := k.mux.OpenKeeperURL(ctx, u)
	if err != nil {
		if u.Scheme == localsecrets.Scheme && u.Host != "" {
			msg := strings.ReplaceAll(err.Error(), u.Host, "REDACTED")
			return nil, fmt.Errorf("failed to open KMS keeper (%s): %s", u.Scheme, msg)
		}
		return nil, fmt.Errorf("failed to open KMS keeper (%s): %w", u.Scheme, err)
	}
	return keeper, nil
}
