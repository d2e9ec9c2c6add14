package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)
)

// Model defines the application state
type Model struct {
	mainMenu    list.Model
	orderList   list.Model
	kitchenView table.Model
	stockView   table.Model
	orderDetail Order
	textInput   textinput.Model
	spinner     spinner.Model
	client      *ApiClient
	currentView string
	status      string
	error       string
}

// item represents a main menu entry
type item struct {
	title, desc string
}

func (i item) FilterValue() string { return i.title }
func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }

func initialModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	items := []list.Item{
		item{title: "Orders", desc: "Browse and drive the order lifecycle"},
		item{title: "Kitchen Queue", desc: "Active tickets, oldest first"},
		item{title: "Stock", desc: "Ingredient ledger and low-stock alerts"},
		item{title: "New Order", desc: "Place an order with stock reservation"},
		item{title: "Exit", desc: "Exit the application"},
	}
	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "Comanda"

	kitchenTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 5},
			{Title: "Table", Width: 6},
			{Title: "State", Width: 16},
			{Title: "Description", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	stockTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Ingredient", Width: 20},
			{Title: "Available", Width: 12},
			{Title: "Unit", Width: 5},
			{Title: "Min", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	orderList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	orderList.Title = "Orders"

	ti := textinput.New()
	ti.Placeholder = "menu item id,table,customer,quantity"
	ti.CharLimit = 80
	ti.Width = 40

	return Model{
		mainMenu:    mainMenu,
		orderList:   orderList,
		kitchenView: kitchenTable,
		stockView:   stockTable,
		spinner:     s,
		textInput:   ti,
		client:      NewApiClient(),
		currentView: "main",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.mainMenu.SetSize(msg.Width-h, msg.Height-v)
		m.orderList.SetSize(msg.Width-h, msg.Height-v)
	case ordersMsg:
		m.error = ""
		m.orderList.SetItems(ordersToItems(msg.orders))
		return m, nil
	case orderDetailMsg:
		m.error = ""
		m.orderDetail = msg.order
		m.currentView = "order_detail"
		return m, nil
	case kitchenMsg:
		m.error = ""
		m.kitchenView.SetRows(kitchenToRows(msg.queue))
		return m, nil
	case stockMsg:
		m.error = ""
		m.stockView.SetRows(stockToRows(msg.entries))
		return m, nil
	case statusMsg:
		m.error = ""
		m.status = msg.message
		return m, m.refresh()
	case errorMsg:
		m.error = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	switch m.currentView {
	case "main":
		m.mainMenu, cmd = m.mainMenu.Update(msg)
	case "orders":
		m.orderList, cmd = m.orderList.Update(msg)
	case "kitchen":
		m.kitchenView, cmd = m.kitchenView.Update(msg)
	case "stock":
		m.stockView, cmd = m.stockView.Update(msg)
	case "create_order":
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}

// handleKey processes key presses. It reports whether the key was
// consumed so list navigation keeps working otherwise.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()

	if key == "ctrl+c" {
		return tea.Quit, true
	}
	if key == "q" && m.currentView != "create_order" {
		return tea.Quit, true
	}

	switch m.currentView {
	case "main":
		if key != "enter" {
			return nil, false
		}
		selected, ok := m.mainMenu.SelectedItem().(item)
		if !ok {
			return nil, false
		}
		switch selected.title {
		case "Exit":
			return tea.Quit, true
		case "Orders":
			m.currentView = "orders"
			return fetchOrders(m.client), true
		case "Kitchen Queue":
			m.currentView = "kitchen"
			return fetchKitchen(m.client), true
		case "Stock":
			m.currentView = "stock"
			return fetchStock(m.client), true
		case "New Order":
			m.currentView = "create_order"
			m.textInput.SetValue("")
			m.textInput.Focus()
			return nil, true
		}

	case "orders":
		switch key {
		case "enter":
			if selected, ok := m.orderList.SelectedItem().(orderItem); ok {
				return fetchOrderDetail(m.client, selected.id), true
			}
		case "esc":
			m.currentView = "main"
			return nil, true
		case "r":
			return fetchOrders(m.client), true
		}

	case "order_detail":
		switch key {
		case "esc", "enter":
			m.currentView = "orders"
			return fetchOrders(m.client), true
		case "c":
			return advanceOrder(m.client, m.orderDetail.ID, "confirm"), true
		case "y":
			return advanceOrder(m.client, m.orderDetail.ID, "ready"), true
		case "d":
			return advanceOrder(m.client, m.orderDetail.ID, "deliver"), true
		case "l":
			return advanceOrder(m.client, m.orderDetail.ID, "close"), true
		case "x":
			return advanceOrder(m.client, m.orderDetail.ID, "cancel"), true
		}

	case "kitchen":
		ticket := m.selectedTicket()
		switch key {
		case "esc":
			m.currentView = "main"
			return nil, true
		case "r":
			return fetchKitchen(m.client), true
		case "u":
			return advanceTicket(m.client, ticket, "urgent"), true
		case "s":
			return advanceTicket(m.client, ticket, "start"), true
		case "y":
			return advanceTicket(m.client, ticket, "ready"), true
		case "d":
			return advanceTicket(m.client, ticket, "deliver"), true
		case "x":
			return advanceTicket(m.client, ticket, "cancel"), true
		}

	case "stock":
		switch key {
		case "esc":
			m.currentView = "main"
			return nil, true
		case "r":
			return fetchStock(m.client), true
		}

	case "create_order":
		switch key {
		case "esc":
			m.currentView = "main"
			return nil, true
		case "enter":
			req, err := parseOrderInput(m.textInput.Value())
			if err != nil {
				m.error = err.Error()
				return nil, true
			}
			m.currentView = "orders"
			return placeOrder(m.client, req), true
		}
	}

	return nil, false
}

func (m *Model) selectedTicket() uint {
	row := m.kitchenView.SelectedRow()
	if len(row) == 0 {
		return 0
	}
	id, _ := strconv.ParseUint(row[0], 10, 32)
	return uint(id)
}

// refresh reloads whatever the current view shows.
func (m *Model) refresh() tea.Cmd {
	switch m.currentView {
	case "orders", "order_detail":
		m.currentView = "orders"
		return fetchOrders(m.client)
	case "kitchen":
		return fetchKitchen(m.client)
	case "stock":
		return fetchStock(m.client)
	}
	return nil
}

func (m Model) View() string {
	banner := ""
	if m.status != "" {
		banner = successStyle.Render(m.status) + "\n"
	}
	if m.error != "" {
		banner = errorStyle.Render(m.error) + "\n"
	}

	switch m.currentView {
	case "main":
		return docStyle.Render(m.mainMenu.View())
	case "orders":
		help := "\n'enter' details, 'r' refresh, 'esc' back\n"
		return docStyle.Render(titleStyle.Render("Orders") + "\n\n" + banner + m.orderList.View() + help)
	case "order_detail":
		return docStyle.Render(banner + orderDetailView(m.orderDetail))
	case "kitchen":
		help := "\n'u' urgent, 's' start, 'y' ready, 'd' deliver, 'x' cancel, 'r' refresh, 'esc' back\n"
		return docStyle.Render(titleStyle.Render("Kitchen Queue") + "\n\n" + banner + m.kitchenView.View() + help)
	case "stock":
		help := "\n'r' refresh, 'esc' back\n"
		return docStyle.Render(titleStyle.Render("Stock Ledger") + "\n\n" + banner + m.stockView.View() + help)
	case "create_order":
		help := "\nFormat: <menu item id>,<table>[,<customer>[,<quantity>]]\n'enter' to place, 'esc' to cancel\n"
		return docStyle.Render(titleStyle.Render("New Order") + "\n\n" + banner + m.textInput.View() + help)
	default:
		return infoStyle.Render("Loading...")
	}
}

// Message types for the tea.Model
type ordersMsg struct{ orders []Order }
type orderDetailMsg struct{ order Order }
type kitchenMsg struct{ queue []KitchenOrder }
type stockMsg struct{ entries []StockEntry }
type statusMsg struct{ message string }
type errorMsg struct{ err string }

// orderItem represents an order in the list
type orderItem struct {
	id    string
	title string
	desc  string
}

func (i orderItem) Title() string       { return i.title }
func (i orderItem) Description() string { return i.desc }
func (i orderItem) FilterValue() string { return i.title }

func fetchOrders(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		orders, err := client.GetOrders("")
		if err != nil {
			return errorMsg{err: fmt.Sprintf("fetching orders: %v", err)}
		}
		return ordersMsg{orders: orders}
	}
}

func fetchOrderDetail(client *ApiClient, id string) tea.Cmd {
	return func() tea.Msg {
		order, err := client.GetOrder(id)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("fetching order: %v", err)}
		}
		return orderDetailMsg{order: *order}
	}
}

func fetchKitchen(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		queue, err := client.GetKitchenQueue()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("fetching kitchen queue: %v", err)}
		}
		return kitchenMsg{queue: queue}
	}
}

func fetchStock(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		entries, err := client.GetStock()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("fetching stock: %v", err)}
		}
		return stockMsg{entries: entries}
	}
}

func advanceOrder(client *ApiClient, id, step string) tea.Cmd {
	return func() tea.Msg {
		warning, err := client.AdvanceOrder(id, step)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("%s: %v", step, err)}
		}
		message := fmt.Sprintf("order %s: %s", shortID(id), step)
		if warning != "" {
			message += " (" + warning + ")"
		}
		return statusMsg{message: message}
	}
}

func advanceTicket(client *ApiClient, id uint, step string) tea.Cmd {
	return func() tea.Msg {
		if id == 0 {
			return errorMsg{err: "no ticket selected"}
		}
		warning, err := client.AdvanceTicket(id, step)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("%s: %v", step, err)}
		}
		message := fmt.Sprintf("ticket %d: %s", id, step)
		if warning != "" {
			message += " (" + warning + ")"
		}
		return statusMsg{message: message}
	}
}

func placeOrder(client *ApiClient, req CreateOrderRequest) tea.Cmd {
	return func() tea.Msg {
		order, warning, err := client.PlaceOrder(req)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("placing order: %v", err)}
		}
		message := fmt.Sprintf("order %s placed at table %s", shortID(order.ID), order.Table)
		if warning != "" {
			message += " (" + warning + ")"
		}
		return statusMsg{message: message}
	}
}

// parseOrderInput parses "<menu item id>,<table>[,<customer>[,<qty>]]".
func parseOrderInput(input string) (CreateOrderRequest, error) {
	var req CreateOrderRequest
	fields := splitTrimmed(input)
	if len(fields) < 2 {
		return req, fmt.Errorf("need at least a menu item id and a table")
	}
	id, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return req, fmt.Errorf("menu item id must be a number")
	}
	req.MenuItemID = uint(id)
	req.Table = fields[1]
	if len(fields) > 2 {
		req.Customer = fields[2]
	}
	if len(fields) > 3 {
		qty, err := strconv.Atoi(fields[3])
		if err != nil || qty <= 0 {
			return req, fmt.Errorf("quantity must be a positive number")
		}
		req.Quantity = qty
	}
	return req, nil
}

func splitTrimmed(input string) []string {
	var fields []string
	for _, field := range strings.Split(input, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

func ordersToItems(orders []Order) []list.Item {
	items := make([]list.Item, len(orders))
	for i, order := range orders {
		items[i] = orderItem{
			id:    order.ID,
			title: fmt.Sprintf("Table %s: %s x%d", order.Table, order.Item, order.Quantity),
			desc:  fmt.Sprintf("%s - %s", order.State, shortID(order.ID)),
		}
	}
	return items
}

func kitchenToRows(queue []KitchenOrder) []table.Row {
	rows := make([]table.Row, len(queue))
	for i, ticket := range queue {
		rows[i] = table.Row{
			strconv.FormatUint(uint64(ticket.ID), 10),
			strconv.Itoa(ticket.Table),
			ticket.State,
			ticket.Description,
		}
	}
	return rows
}

func stockToRows(entries []StockEntry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, entry := range entries {
		rows[i] = table.Row{
			entry.Ingredient.Name,
			strconv.FormatFloat(entry.Available, 'f', -1, 64),
			entry.Ingredient.Unit,
			strconv.FormatFloat(entry.Ingredient.MinStock, 'f', -1, 64),
		}
	}
	return rows
}

func orderDetailView(order Order) string {
	view := titleStyle.Render("Order "+shortID(order.ID)) + "\n\n"
	view += fmt.Sprintf("Table: %s\n", order.Table)
	if order.Customer != "" {
		view += fmt.Sprintf("Customer: %s\n", order.Customer)
	}
	view += fmt.Sprintf("Item: %s x%d\n", order.Item, order.Quantity)
	view += fmt.Sprintf("State: %s\n", order.State)
	view += fmt.Sprintf("Created: %s\n", order.CreatedAt.Format(time.RFC1123))
	if order.DeliveredAt != nil {
		view += fmt.Sprintf("Delivered: %s\n", order.DeliveredAt.Format(time.RFC1123))
	}
	view += "\n'c' confirm, 'y' ready, 'd' deliver, 'l' close, 'x' cancel, 'esc' back"
	return view
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
