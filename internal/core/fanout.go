package core

// Deliver pushes f to every target without blocking. Connections whose
// buffer is full are reported in Dropped and left to the caller's policy.
func Deliver(targets []Conn, f Frame) PublishResult {
	res := PublishResult{}
	for _, c := range targets {
		if c == nil {
			continue
		}
		if err := c.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, c)
			continue
		}
		res.SendTo++
	}
	return res
}
