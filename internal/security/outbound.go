package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard は価格APIなど外部サービスへの通信先を制限する。
type OutboundGuard interface {
	// Client は内部ネットワーク宛ての接続をダイヤル時に拒否するHTTPクライアントを返す。
	// DNS解決後のIPアドレスで判定するため、DNS再バインディングも防げる。
	Client(timeout time.Duration) *http.Client
	// ValidateURL はDNS解決を行わずにURLを静的に検証する。設定値の起動時チェックに使う。
	ValidateURL(rawURL string) error
}

var outboundSchemes = []string{"http", "https"}

// 拒否する宛先。プライベート、ループバック、リンクローカル（メタデータIPを含む）。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardを生成する。
func NewOutboundGuard() OutboundGuard {
	return outboundGuard{}
}

func (outboundGuard) Client(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(outboundSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

func (outboundGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !slices.Contains(outboundSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("disallowed scheme: %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// ホスト名はダイヤル時に検証する
		return nil
	}
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
	}
	return nil
}
