// Package lease реализует координацию владения due schedules
// между worker'ами.
//
// Lease — короткое, ограниченное по времени исключительное право
// одного worker'а обработать одно срабатывание. Выдаётся и продлевается
// условными записями store (по version); отдельного lock-сервиса нет,
// и ни один worker никогда не ждёт чужой блокировки.
//
// Version играет роль fencing token: worker, у которого lease истёк
// и был перехвачен, не может зафиксировать устаревший результат —
// его условная запись отклоняется store'ом.
package lease
