// Package cli реализует инструмент командной строки Chronos.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Chronos API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Chronos API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	schedules, err := client.ListSchedules("")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: chronos schedule list --json | jq .
//
// ## Commands
//
// Cobra-команды:
//   - schedule: list, create, show, update, delete, pause, resume
//
// Группа создаётся через фабричную функцию NewScheduleCmd,
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
