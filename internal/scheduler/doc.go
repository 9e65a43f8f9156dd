// Package scheduler реализует per-worker цикл планирования.
//
// Каждый worker в вечном цикле:
//  1. Забирает из store батч due schedules (backpressure по batch size)
//  2. На каждого кандидата пытается взять lease; проигранная гонка —
//     обычный исход, кандидат пропускается
//  3. Передаёт триггер dispatcher'у не дожидаясь доставки; fire_time
//     триггера — это next_fire_at schedule, не показания часов
//  4. Вычисляет следующее срабатывание от ПРЕДЫДУЩЕГО next_fire_at,
//     чтобы задержки обработки не накапливались в дрейф
//  5. Фиксирует исход условной записью с версией lease; конфликт
//     означает потерю владения — обновление молча бросается,
//     реконсиляция остаётся recovery manager'у
//
// При простое цикл спит до ближайшего next_fire_at или до конца
// poll interval — что наступит раньше.
package scheduler
