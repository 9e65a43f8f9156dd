// Package dispatch реализует асинхронную доставку триггеров.
//
// Dispatcher потребляет очередь триггеров независимо от темпа
// scheduling loop: медленный downstream не душит планирование.
// Очередь ограничена; при насыщении loop прекращает захват новых
// schedules (backpressure), а не копит работу без границ.
//
// Доставка at-least-once: падение между успешной доставкой и
// записью в store может привести к повторной доставке после
// восстановления. Получатель по контракту обязан быть идемпотентным
// относительно пары (schedule_id, fire_time).
//
// Транзиентные сбои повторяются с экспоненциальной задержкой до
// настроенного максимума попыток; исчерпание переводит schedule
// в FAILED — это пользовательский сигнал сбоя.
package dispatch
