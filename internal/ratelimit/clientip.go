package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownIP 无法解析出任何有效地址时的哨兵值
// 匿名且无法溯源的流量仍按此身份参与限流，而不是被跳过
const UnknownIP = "unknown"

// forwardHeaders 代理转发头的检查顺序，靠前的优先
var forwardHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// ResolveClientIP 从代理转发头和直连地址解析客户端 IP
//
// 转发头可被伪造，因此从头部取值时拒绝私有/保留网段地址；
// X-Forwarded-For 形如 "client, proxy1, proxy2"，取第一个有效公网条目。
// 直连地址作为兜底，此时私有地址也接受（内网部署常见）。
// 永不返回错误。
func ResolveClientIP(headers http.Header, remoteAddr string) string {
	for _, header := range forwardHeaders {
		value := headers.Get(header)
		if value == "" {
			continue
		}
		for _, part := range strings.Split(value, ",") {
			candidate := strings.TrimSpace(part)
			addr, err := netip.ParseAddr(candidate)
			if err != nil {
				continue
			}
			if isPublic(addr) {
				return addr.String()
			}
			// 私有地址是代理链的延续，继续找下一个条目
		}
	}

	// 兜底：直连地址（可能带端口）
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil && !addr.IsUnspecified() {
		return addr.String()
	}

	return UnknownIP
}

// isPublic 判断地址是否为可信的公网单播地址
func isPublic(addr netip.Addr) bool {
	switch {
	case addr.IsPrivate(),
		addr.IsLoopback(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified():
		return false
	}
	return addr.IsValid()
}
