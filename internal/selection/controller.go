package selection

// Controller couples a State with a ProfileView: every EventReady shows
// the resolved selection in the view. Controller methods return the
// fetches of both.
type Controller struct {
	state   *State
	view    *ProfileView
	pending []Fetch
}

// NewController wires view to state.
func NewController(state *State, view *ProfileView) *Controller {
	c := &Controller{state: state, view: view}
	state.Subscribe(func(e Event) {
		if e == EventReady {
			c.pending = append(c.pending, view.Show(state.Resolved())...)
		}
	})
	return c
}

// State returns the selection state.
func (c *Controller) State() *State { return c.state }

// View returns the profile view.
func (c *Controller) View() *ProfileView { return c.view }

func (c *Controller) collect(fs []Fetch) []Fetch {
	if len(c.pending) == 0 {
		return fs
	}
	fs = append(fs, c.pending...)
	c.pending = nil
	return fs
}

// Start loads the cached selection and requests the application list.
func (c *Controller) Start() ([]Fetch, error) {
	if err := c.state.LoadCachedSelection(); err != nil {
		return nil, err
	}
	return c.collect(c.state.FetchApplications()), nil
}

// Apply routes a result to the state or the view.
func (c *Controller) Apply(res Result) []Fetch {
	if res.Fetch.Kind == KindMetadata || res.Fetch.Kind == KindProfile {
		c.view.Apply(res)
		return nil
	}
	return c.collect(c.state.Apply(res))
}

// Select selects option i of a level.
func (c *Controller) Select(l Level, i int) []Fetch {
	return c.collect(c.state.Select(l, i))
}

// Confirm confirms the current selection.
func (c *Controller) Confirm() ([]Fetch, error) {
	if err := c.state.ConfirmSelection(); err != nil {
		c.pending = nil
		return nil, err
	}
	return c.collect(nil), nil
}

// Refresh re-requests the application list.
func (c *Controller) Refresh() []Fetch {
	return c.collect(c.state.FetchApplications())
}

// LoadMore requests the next page of rows.
func (c *Controller) LoadMore() []Fetch {
	return c.view.LoadMore()
}

// ToggleType flips the row ordering between inclusive and exclusive.
func (c *Controller) ToggleType() []Fetch {
	return c.view.ToggleType()
}
