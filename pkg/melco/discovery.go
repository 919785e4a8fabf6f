package melco

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// ControllerInfo describes a controller found on the network.
type ControllerInfo struct {
	IP      string
	Model   string
	Version string
}

// ProbeController asks host for its SystemData and reports what it answered.
// A host that does not speak the protocol fails with the client's error.
func ProbeController(ctx context.Context, host string, opts ...ClientOption) (ControllerInfo, error) {
	client, err := NewClient(host, opts...)
	if err != nil {
		return ControllerInfo{}, err
	}
	attrs, err := client.GetSystemData(ctx)
	if err != nil {
		return ControllerInfo{}, err
	}
	if len(attrs) == 0 {
		return ControllerInfo{}, &DecodeError{Err: fmt.Errorf("%s: no SystemData in response", host)}
	}
	ip := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		ip = h
	}
	return ControllerInfo{IP: ip, Model: attrs["Model"], Version: attrs["Version"]}, nil
}

// DiscoverControllers searches the local /24 subnets for controllers.
// Hosts with the controller port open are probed for SystemData.
// The context controls the overall discovery timeout.
// If the context has no deadline, a 5-second timeout is applied.
func DiscoverControllers(ctx context.Context, opts ...ClientOption) ([]ControllerInfo, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	// Apply default timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	ips, err := getLocalIPs()
	if err != nil {
		return nil, fmt.Errorf("get local IPs: %w", err)
	}

	port := strconv.Itoa(cfg.port)
	resultsCh := make(chan ControllerInfo, len(ips)*254)
	var wg sync.WaitGroup

	for _, ip := range ips {
		baseIP := ip.Mask(net.CIDRMask(24, 32))

		for i := 1; i < 255; i++ {
			targetIP := net.IP{baseIP[0], baseIP[1], baseIP[2], byte(i)}
			wg.Add(1)
			go func(ip string) {
				defer wg.Done()
				var d net.Dialer
				dialCtx, dialCancel := context.WithTimeout(ctx, 300*time.Millisecond)
				conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(ip, port))
				dialCancel()
				if err != nil {
					return
				}
				conn.Close()

				info, err := ProbeController(ctx, net.JoinHostPort(ip, port), opts...)
				if err == nil {
					resultsCh <- info
				}
			}(targetIP.String())
		}
	}

	// Close channel when all goroutines complete
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var results []ControllerInfo
	for {
		select {
		case info, ok := <-resultsCh:
			if !ok {
				return results, nil
			}
			results = append(results, info)
		case <-ctx.Done():
			return results, nil
		}
	}
}

func getLocalIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				ips = append(ips, ip4)
			}
		}
	}
	return ips, nil
}
