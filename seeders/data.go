package seeders

var sampleOrders = []string{
	`{"id": 910000000001, "order_number": 1001, "name": "#1001", "total_price": "1250.00", "currency": "UAH",
	  "customer": {"first_name": "Олена", "last_name": "Коваль", "phone": "0671234567"},
	  "shipping_address": {"first_name": "Олена", "last_name": "Коваль", "phone": "+380671234567", "address1": "вул. Хрещатик, 1", "city": "Київ", "zip": "01001"},
	  "billing_address": {"first_name": "Олена", "last_name": "Коваль", "address1": "вул. Хрещатик, 1", "city": "Київ", "zip": "01001"},
	  "line_items": [{"title": "Чашка керамічна", "quantity": 2, "price": "350.00"}, {"title": "Набір ложок", "quantity": 1, "price": "550.00"}]}`,
	`{"id": 910000000002, "order_number": 1002, "name": "#1002", "total_price": "780.00", "currency": "UAH",
	  "phone": "380501112233",
	  "shipping_address": {"first_name": "Андрій", "last_name": "Мельник", "address1": "пр. Свободи, 10", "city": "Львів", "zip": "79000"},
	  "billing_address": {"first_name": "Ірина", "last_name": "Мельник", "phone": "0509998877", "address1": "вул. Городоцька, 5", "city": "Львів", "zip": "79007"},
	  "line_items": [{"title": "Рушник", "quantity": 3, "price": "260.00"}]}`,
	`{"id": 910000000003, "name": "#1003", "total_price": "99.00",
	  "billing_address": {"first_name": "Марко", "phone": "+48 601 222 333", "city": "Одеса"},
	  "line_items": [{"title": "Листівка", "quantity": 1, "price": "99.00"}]}`,
}
