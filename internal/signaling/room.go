package signaling

// Room pairs at most two participants for one negotiation. Members are
// kept in join order: the first member is the candidate initiator.
type Room struct {
	// ID is the externally supplied room name.
	ID string

	// members holds the participants in join order, never more than two.
	members []*Client
}

// MaxMembers is the hard room capacity.
const MaxMembers = 2

// Len returns the current member count.
func (r *Room) Len() int { return len(r.members) }

// Full reports whether the room already has two members.
func (r *Room) Full() bool { return len(r.members) >= MaxMembers }

// Add appends a member. The caller (the hub loop) checks capacity first.
func (r *Room) Add(c *Client) {
	r.members = append(r.members, c)
}

// Remove deletes a member, preserving join order of the remainder.
func (r *Room) Remove(c *Client) {
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// Peer returns the other member of the room, or nil when the given
// client is alone (or not a member at all).
func (r *Room) Peer(c *Client) *Client {
	for _, m := range r.members {
		if m != c {
			return m
		}
	}
	return nil
}

// Members returns the members in join order.
func (r *Room) Members() []*Client { return r.members }
