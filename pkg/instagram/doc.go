// Package instagram reads public Instagram profile pages rendered by a
// browser session.
//
// Pages are parsed with goquery into raw records (RawProfile, RawMedia),
// which are then mapped onto validated models payloads. Nothing leaves the
// package without passing through that mapping step.
//
// Example usage:
//
//	bind := instagram.Binder(instagram.AdapterOptions{
//	    NavigationTimeout: 30 * time.Second,
//	    Limiter:           ratelimit.PerMinute(20, 3),
//	})
//	lease, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//
//	profile, err := bind(lease.Session()).FetchProfile(ctx, "natgeo")
package instagram
